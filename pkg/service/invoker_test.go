package service

import (
	"context"
	"testing"

	"github.com/certen-mesh/atechain/pkg/comms"
)

func TestUpperInvokerSatisfiesServiceInvoker(t *testing.T) {
	var inv ServiceInvoker = upperInvoker{}

	if inv.RequestTypeName() != "upper.request" {
		t.Fatalf("RequestTypeName() = %q", inv.RequestTypeName())
	}
	if inv.ResponseTypeName() != "upper.response" {
		t.Fatalf("ResponseTypeName() = %q", inv.ResponseTypeName())
	}
	if inv.ErrorTypeName() != "upper.error" {
		t.Fatalf("ErrorTypeName() = %q", inv.ErrorTypeName())
	}
	if inv.DataFormat() != comms.WireJSON {
		t.Fatalf("DataFormat() = %v, want WireJSON", inv.DataFormat())
	}

	out, err := inv.Invoke(context.Background(), []byte("abc"))
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "ABC" {
		t.Fatalf("Invoke() = %q, want ABC", out)
	}
}
