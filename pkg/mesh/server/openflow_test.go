package server

import "testing"

func TestAlwaysCreateAlwaysReturnsCreate(t *testing.T) {
	d, err := AlwaysCreate.Open("anything")
	if err != nil {
		t.Fatal(err)
	}
	if d != Create {
		t.Fatalf("Decision = %v, want Create", d)
	}
}

func TestAlwaysRejectAlwaysReturnsReject(t *testing.T) {
	d, err := AlwaysReject.Open("anything")
	if err != nil {
		t.Fatal(err)
	}
	if d != Reject {
		t.Fatalf("Decision = %v, want Reject", d)
	}
}

func TestOpenFlowFuncAdapts(t *testing.T) {
	called := false
	f := OpenFlowFunc(func(name string) (Decision, error) {
		called = true
		if name != "x" {
			t.Fatalf("name = %q, want x", name)
		}
		return Redirect, nil
	})
	d, err := f.Open("x")
	if err != nil {
		t.Fatal(err)
	}
	if !called || d != Redirect {
		t.Fatalf("called=%v d=%v", called, d)
	}
}
