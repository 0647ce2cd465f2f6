package goldentest

import "testing"

func TestScenariosRenderFiniteNonNegativeRadiance(t *testing.T) {
	for _, sc := range Scenarios() {
		sc := sc
		t.Run(sc.Name, func(t *testing.T) {
			if err := Verify(sc, 8, 8, 4); err != nil {
				t.Fatalf("%v", err)
			}
		})
	}
}
