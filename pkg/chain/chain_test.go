package chain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/certen-mesh/atechain/pkg/crypto"
	"github.com/certen-mesh/atechain/pkg/crypto/hash"
	"github.com/certen-mesh/atechain/pkg/crypto/sign"
	"github.com/certen-mesh/atechain/pkg/event"
	"github.com/certen-mesh/atechain/pkg/index"
	"github.com/certen-mesh/atechain/pkg/redo"
)

func dataEvent(key crypto.PrimaryKey, payload []byte) event.Event {
	return event.New(event.Metadata{Core: []event.Entry{event.EntryData(key)}}, payload)
}

func TestOpenEphemeralBecomesReady(t *testing.T) {
	c := OpenEphemeral()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.WaitReady(ctx); err != nil {
		t.Fatal(err)
	}
	if c.State() != Ready {
		t.Fatalf("State() = %v, want Ready", c.State())
	}
}

func TestFeedAppendsAndIndexes(t *testing.T) {
	c := OpenEphemeral()
	key := crypto.MustNewPrimaryKey()
	ev := dataEvent(key, []byte("payload"))

	h, offset, err := c.Feed(context.Background(), ev)
	if err != nil {
		t.Fatal(err)
	}
	if offset != 0 {
		t.Fatalf("offset = %d, want 0", offset)
	}
	got, ok := c.Index().Lookup(key)
	if !ok || got != h {
		t.Fatalf("Lookup() = %v, %v; want %v, true", got, ok, h)
	}
	if c.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", c.Count())
	}
}

func TestFeedRejectsEventWithNoKey(t *testing.T) {
	c := OpenEphemeral()
	ev := event.New(event.Metadata{Core: []event.Entry{event.EntryType("widget")}}, nil)

	_, _, err := c.Feed(context.Background(), ev)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
	if c.State() != Ready {
		t.Fatal("a validation failure must not change chain state")
	}
}

func TestValidatorRejectionStaysValidationError(t *testing.T) {
	reject := ValidatorFunc(func(idx *index.Index, ev event.Event) error {
		return ErrUnauthorized
	})
	c := OpenEphemeral(WithValidator(reject))
	ev := dataEvent(crypto.MustNewPrimaryKey(), []byte("x"))

	_, _, err := c.Feed(context.Background(), ev)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want wrapping ErrUnauthorized", err)
	}
	if c.State() != Ready {
		t.Fatal("chain must remain Ready after a validation rejection")
	}
}

func signedDataEvent(t *testing.T, priv sign.PrivateSignKey, pub sign.PublicSignKey, key crypto.PrimaryKey, payload []byte, auth event.Authorization) event.Event {
	t.Helper()
	ev := event.New(event.Metadata{Core: []event.Entry{
		event.EntryData(key),
		event.EntryAuthorization(auth),
	}}, payload)

	h, err := ev.UnsignedHash()
	if err != nil {
		t.Fatal(err)
	}
	sig, err := priv.Sign(h[:])
	if err != nil {
		t.Fatal(err)
	}
	ev.Meta.Core = append(ev.Meta.Core, event.EntrySignature(event.Signature{
		Covers:    []hash.Hash{h},
		PublicKey: pub.Bytes(),
		Bytes:     sig,
	}))
	return ev
}

func TestAllowAllAcceptsValidSignatureUnderAuthorization(t *testing.T) {
	priv, pub, err := sign.GenerateKeyPair(crypto.Bit256)
	if err != nil {
		t.Fatal(err)
	}
	auth := event.Authorization{
		Write: event.WriteAuthorization{Mode: event.WriteSpecific, KeyHashes: []hash.Hash{hash.Sum(pub.Bytes())}},
	}

	c := OpenEphemeral()
	key := crypto.MustNewPrimaryKey()
	ev := signedDataEvent(t, priv, pub, key, []byte("payload"), auth)

	if _, _, err := c.Feed(context.Background(), ev); err != nil {
		t.Fatalf("Feed() with a valid signature under an authorized key = %v, want nil", err)
	}
}

func TestAllowAllRejectsUnsignedWriteUnderAuthorization(t *testing.T) {
	_, pub, err := sign.GenerateKeyPair(crypto.Bit256)
	if err != nil {
		t.Fatal(err)
	}
	auth := event.Authorization{
		Write: event.WriteAuthorization{Mode: event.WriteSpecific, KeyHashes: []hash.Hash{hash.Sum(pub.Bytes())}},
	}

	c := OpenEphemeral()
	key := crypto.MustNewPrimaryKey()
	ev := event.New(event.Metadata{Core: []event.Entry{
		event.EntryData(key),
		event.EntryAuthorization(auth),
	}}, []byte("payload"))

	_, _, err = c.Feed(context.Background(), ev)
	var ve *ValidationError
	if !errors.As(err, &ve) || !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want *ValidationError wrapping ErrUnauthorized", err)
	}
}

func TestAllowAllRejectsSignatureFromUnauthorizedKey(t *testing.T) {
	priv, pub, err := sign.GenerateKeyPair(crypto.Bit256)
	if err != nil {
		t.Fatal(err)
	}
	_, otherPub, err := sign.GenerateKeyPair(crypto.Bit256)
	if err != nil {
		t.Fatal(err)
	}
	auth := event.Authorization{
		Write: event.WriteAuthorization{Mode: event.WriteSpecific, KeyHashes: []hash.Hash{hash.Sum(otherPub.Bytes())}},
	}

	c := OpenEphemeral()
	key := crypto.MustNewPrimaryKey()
	ev := signedDataEvent(t, priv, pub, key, []byte("payload"), auth)

	_, _, err = c.Feed(context.Background(), ev)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized for a signature from a key not on the allow list", err)
	}
}

func TestAllowAllResolvesAuthorizationFromPrecedingEvent(t *testing.T) {
	priv, pub, err := sign.GenerateKeyPair(crypto.Bit256)
	if err != nil {
		t.Fatal(err)
	}
	auth := event.Authorization{
		Write: event.WriteAuthorization{Mode: event.WriteSpecific, KeyHashes: []hash.Hash{hash.Sum(pub.Bytes())}},
	}

	c := OpenEphemeral()
	key := crypto.MustNewPrimaryKey()
	first := signedDataEvent(t, priv, pub, key, []byte("v1"), auth)
	if _, _, err := c.Feed(context.Background(), first); err != nil {
		t.Fatal(err)
	}

	// A later update carries no Authorization entry of its own; the
	// validator must resolve the one the index recorded for this key.
	update := event.New(event.Metadata{Core: []event.Entry{event.EntryData(key)}}, []byte("v2"))
	h, err := update.UnsignedHash()
	if err != nil {
		t.Fatal(err)
	}
	sig, err := priv.Sign(h[:])
	if err != nil {
		t.Fatal(err)
	}
	update.Meta.Core = append(update.Meta.Core, event.EntrySignature(event.Signature{
		Covers:    []hash.Hash{h},
		PublicKey: pub.Bytes(),
		Bytes:     sig,
	}))

	if _, _, err := c.Feed(context.Background(), update); err != nil {
		t.Fatalf("Feed() with signature matching the preceding Authorization = %v, want nil", err)
	}
}

func TestLoadReadsBackPayload(t *testing.T) {
	c := OpenEphemeral()
	key := crypto.MustNewPrimaryKey()
	ev := dataEvent(key, []byte("hello"))

	if _, _, err := c.Feed(context.Background(), ev); err != nil {
		t.Fatal(err)
	}
	got, err := c.Load(context.Background(), key)
	if err != nil {
		t.Fatal(err)
	}
	if string(got.Data) != "hello" {
		t.Fatalf("Load().Data = %q, want %q", got.Data, "hello")
	}
}

func TestLoadMissingKeyReturnsErrNotFound(t *testing.T) {
	c := OpenEphemeral()
	_, err := c.Load(context.Background(), crypto.MustNewPrimaryKey())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestOpenDurableReplaysIntoIndex(t *testing.T) {
	dir := t.TempDir()
	key := crypto.MustNewPrimaryKey()

	c1, err := OpenDurable(dir, "chain-a")
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := c1.Feed(context.Background(), dataEvent(key, []byte("v1"))); err != nil {
		t.Fatal(err)
	}
	if err := c1.Shutdown(redo.BackupNone); err != nil {
		t.Fatal(err)
	}

	c2, err := OpenDurable(dir, "chain-a")
	if err != nil {
		t.Fatal(err)
	}
	defer c2.Shutdown(redo.BackupNone)

	if _, ok := c2.Index().Lookup(key); !ok {
		t.Fatal("expected index to be rebuilt from replayed segments")
	}
	if c2.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", c2.Count())
	}
}

func TestShutdownTransitionsToClosed(t *testing.T) {
	c := OpenEphemeral()
	if err := c.Shutdown(redo.BackupNone); err != nil {
		t.Fatal(err)
	}
	if c.State() != Closed {
		t.Fatalf("State() = %v, want Closed", c.State())
	}

	_, _, err := c.Feed(context.Background(), dataEvent(crypto.MustNewPrimaryKey(), []byte("x")))
	if !errors.Is(err, ErrNotReady) {
		t.Fatalf("Feed() after close err = %v, want ErrNotReady", err)
	}
}

func TestLessOrdersByTimestampThenHash(t *testing.T) {
	t0 := time.Unix(0, 0)
	t1 := time.Unix(1, 0)
	h1 := hash.Hash{1}
	h2 := hash.Hash{2}

	if !Less(t0, h2, t1, h1) {
		t.Fatal("earlier timestamp must sort first regardless of hash")
	}
	if Less(t1, h1, t0, h2) {
		t.Fatal("later timestamp must not sort first")
	}
	if !Less(t0, h1, t0, h2) {
		t.Fatal("equal timestamps must tie-break on hash ordering")
	}
	if Less(t0, h2, t0, h1) {
		t.Fatal("equal timestamps must tie-break on hash ordering (reverse)")
	}
}
