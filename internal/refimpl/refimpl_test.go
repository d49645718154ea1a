package refimpl

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/certen-mesh/atechain/pkg/mesh/server"
)

func TestKVInvokerSetThenGetRoundTrips(t *testing.T) {
	inv := NewKVInvoker()

	setReq, err := json.Marshal(KVRequest{Op: "set", Key: "k", Value: "v"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := inv.Invoke(context.Background(), setReq); err != nil {
		t.Fatal(err)
	}

	getReq, err := json.Marshal(KVRequest{Op: "get", Key: "k"})
	if err != nil {
		t.Fatal(err)
	}
	out, err := inv.Invoke(context.Background(), getReq)
	if err != nil {
		t.Fatal(err)
	}
	var resp KVResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Found || resp.Value != "v" {
		t.Fatalf("resp = %+v, want Found=true Value=v", resp)
	}
}

func TestKVInvokerGetMissingKeyReportsNotFound(t *testing.T) {
	inv := NewKVInvoker()
	req, err := json.Marshal(KVRequest{Op: "get", Key: "missing"})
	if err != nil {
		t.Fatal(err)
	}
	out, err := inv.Invoke(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	var resp KVResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Found {
		t.Fatal("expected Found=false for a missing key")
	}
}

func TestKVInvokerRejectsUnknownOp(t *testing.T) {
	inv := NewKVInvoker()
	req, err := json.Marshal(KVRequest{Op: "delete", Key: "k"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := inv.Invoke(context.Background(), req); err == nil {
		t.Fatal("expected an error for an unrecognized op")
	}
}

func TestAllowListOpenFlowPermitsOnlyAllowedNames(t *testing.T) {
	f := NewAllowListOpenFlow("alpha")

	decision, err := f.Open("alpha")
	if err != nil {
		t.Fatal(err)
	}
	if decision != server.Create {
		t.Fatalf("decision for allowed chain = %v, want Create", decision)
	}

	decision, err = f.Open("beta")
	if err != nil {
		t.Fatal(err)
	}
	if decision != server.Reject {
		t.Fatalf("decision for unlisted chain = %v, want Reject", decision)
	}

	f.Allow("beta")
	decision, err = f.Open("beta")
	if err != nil {
		t.Fatal(err)
	}
	if decision != server.Create {
		t.Fatal("beta should be permitted after Allow")
	}

	f.Revoke("beta")
	decision, err = f.Open("beta")
	if err != nil {
		t.Fatal(err)
	}
	if decision != server.Reject {
		t.Fatal("beta should be rejected after Revoke")
	}
}

func TestNewDemoSessionPopulatesUserKeys(t *testing.T) {
	s, err := NewDemoSession("alice")
	if err != nil {
		t.Fatal(err)
	}
	if s.Identity != "alice" {
		t.Fatalf("Identity = %q, want alice", s.Identity)
	}
	if !s.UserKeys.HasRead() {
		t.Fatal("expected UserKeys to carry read material")
	}
	if !s.UserKeys.HasWrite() {
		t.Fatal("expected UserKeys to carry write material")
	}
}
