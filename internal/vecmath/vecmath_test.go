package vecmath

import "testing"

func TestVec3Normalize(t *testing.T) {
	v := Vec3{3, 4, 0}.Normalize()
	if diff := v.Len() - 1.0; diff > 1e-5 || diff < -1e-5 {
		t.Fatalf("expected unit length, got %f", v.Len())
	}
}

func TestMat4InvIdentity(t *testing.T) {
	m := Ident4()
	inv := m.Inv()
	for i := range m {
		if m[i] != inv[i] {
			t.Fatalf("identity inverse mismatch at %d: %f vs %f", i, m[i], inv[i])
		}
	}
}

func TestMat4InvRoundTrip(t *testing.T) {
	m := LookAtV(Vec3{1, 2, 3}, Vec3{0, 0, 0}, Vec3{0, 1, 0})
	inv := m.Inv()
	product := m.Mul4(inv)
	ident := Ident4()
	for i := range product {
		if diff := product[i] - ident[i]; diff > 1e-3 || diff < -1e-3 {
			t.Fatalf("M * M^-1 != I at %d: got %f", i, product[i])
		}
	}
}

func TestReflectRefract(t *testing.T) {
	n := Vec3{0, 1, 0}
	i := Vec3{1, -1, 0}.Normalize()
	r := Reflect(i, n)
	if r[1] <= 0 {
		t.Fatalf("expected reflected ray to point away from surface, got %v", r)
	}

	// eta = n1/n2: entering glass from air at 45 degrees.
	if _, ok := Refract(i, n, 1.0/1.5); !ok {
		t.Fatalf("expected valid refraction for moderate eta")
	}
}

func TestBasisOrthonormal(t *testing.T) {
	n := Vec3{0, 0, 1}
	tangent, bitangent := Basis(n)
	if d := tangent.Dot(n); d > 1e-5 || d < -1e-5 {
		t.Fatalf("tangent not orthogonal to normal: %f", d)
	}
	if d := bitangent.Dot(n); d > 1e-5 || d < -1e-5 {
		t.Fatalf("bitangent not orthogonal to normal: %f", d)
	}
	if d := tangent.Dot(bitangent); d > 1e-5 || d < -1e-5 {
		t.Fatalf("tangent not orthogonal to bitangent: %f", d)
	}
}
