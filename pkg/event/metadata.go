// Package event implements the immutable Event and its Metadata header —
// the unit the redo-log stores, the chain-of-trust validates, and the mesh
// replicates. Generalizes the teacher's pkg/database/proof_artifact_types.go
// tagged-record layout (one Go struct per record kind, a discriminant field
// selecting which payload is populated) into the spec's closed set of
// Metadata entry variants.
package event

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/certen-mesh/atechain/pkg/crypto"
	"github.com/certen-mesh/atechain/pkg/crypto/hash"
)

// MetaCollection identifies a parent collection a record's Tree entry places
// it in.
type MetaCollection string

// EntryKind discriminates the variants of a Metadata.Core entry.
type EntryKind string

const (
	KindData            EntryKind = "data"
	KindTombstone       EntryKind = "tombstone"
	KindTree            EntryKind = "tree"
	KindType            EntryKind = "type"
	KindReply           EntryKind = "reply"
	KindAuthorization   EntryKind = "authorization"
	KindSignature       EntryKind = "signature"
	KindConfidentiality EntryKind = "confidentiality"
)

// ReadAuthorization describes who may read a record's payload.
type ReadAuthorization struct {
	// Mode is one of "none", "inheritable", or "specific".
	Mode string `json:"mode"`
	// KeyHashes lists the signing-key hashes allowed to read, when Mode is
	// "specific".
	KeyHashes []hash.Hash `json:"key_hashes,omitempty"`
}

const (
	ReadNone        = "none"
	ReadInheritable = "inheritable"
	ReadSpecific    = "specific"
)

// WriteAuthorization describes who may write (sign) a record.
type WriteAuthorization struct {
	// Mode is one of "everyone", "nobody", or "specific".
	Mode string `json:"mode"`
	// KeyHashes lists the signing-key hashes allowed to write, when Mode is
	// "specific".
	KeyHashes []hash.Hash `json:"key_hashes,omitempty"`
}

const (
	WriteEveryone = "everyone"
	WriteNobody   = "nobody"
	WriteSpecific = "specific"
)

// Authorization is a read/write authorization pair attached to a record.
type Authorization struct {
	Read  ReadAuthorization  `json:"read"`
	Write WriteAuthorization `json:"write"`
}

// AllowsWrite reports whether a signer whose key hash is keyHash may write
// under this authorization.
func (a Authorization) AllowsWrite(keyHash hash.Hash) bool {
	switch a.Write.Mode {
	case WriteEveryone:
		return true
	case WriteNobody:
		return false
	case WriteSpecific:
		for _, kh := range a.Write.KeyHashes {
			if kh == keyHash {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// Signature is a detached Falcon signature covering one or more event
// hashes.
type Signature struct {
	Covers    []hash.Hash `json:"covers"`
	PublicKey []byte      `json:"public_key"`
	Bytes     []byte      `json:"bytes"`
}

// Entry is one tagged entry in Metadata.Core. Exactly one field is
// populated, selected by Kind.
type Entry struct {
	Kind EntryKind `json:"kind"`

	Data      *crypto.PrimaryKey `json:"data,omitempty"`
	Tombstone *crypto.PrimaryKey `json:"tombstone,omitempty"`

	TreeParent     *crypto.PrimaryKey `json:"tree_parent,omitempty"`
	TreeCollection MetaCollection     `json:"tree_collection,omitempty"`

	Type string `json:"type,omitempty"`

	Reply *crypto.PrimaryKey `json:"reply,omitempty"`

	Authorization *Authorization `json:"authorization,omitempty"`

	Signature *Signature `json:"signature,omitempty"`

	Confidentiality *hash.Hash `json:"confidentiality,omitempty"`
}

func EntryData(k crypto.PrimaryKey) Entry      { return Entry{Kind: KindData, Data: &k} }
func EntryTombstone(k crypto.PrimaryKey) Entry { return Entry{Kind: KindTombstone, Tombstone: &k} }
func EntryTree(parent crypto.PrimaryKey, collection MetaCollection) Entry {
	return Entry{Kind: KindTree, TreeParent: &parent, TreeCollection: collection}
}
func EntryType(name string) Entry      { return Entry{Kind: KindType, Type: name} }
func EntryReply(k crypto.PrimaryKey) Entry { return Entry{Kind: KindReply, Reply: &k} }
func EntryAuthorization(a Authorization) Entry {
	return Entry{Kind: KindAuthorization, Authorization: &a}
}
func EntrySignature(s Signature) Entry { return Entry{Kind: KindSignature, Signature: &s} }
func EntryConfidentiality(h hash.Hash) Entry {
	return Entry{Kind: KindConfidentiality, Confidentiality: &h}
}

// Metadata is the ordered set of tagged entries describing one Event.
type Metadata struct {
	Core []Entry `json:"core"`
}

// DataKey returns the PrimaryKey of the record this event writes, if any.
func (m Metadata) DataKey() (crypto.PrimaryKey, bool) {
	for _, e := range m.Core {
		if e.Kind == KindData {
			return *e.Data, true
		}
	}
	return crypto.PrimaryKey{}, false
}

// TombstoneKey returns the PrimaryKey this event deletes, if any.
func (m Metadata) TombstoneKey() (crypto.PrimaryKey, bool) {
	for _, e := range m.Core {
		if e.Kind == KindTombstone {
			return *e.Tombstone, true
		}
	}
	return crypto.PrimaryKey{}, false
}

// Tree returns the parent/collection entry, if any.
func (m Metadata) Tree() (crypto.PrimaryKey, MetaCollection, bool) {
	for _, e := range m.Core {
		if e.Kind == KindTree {
			return *e.TreeParent, e.TreeCollection, true
		}
	}
	return crypto.PrimaryKey{}, "", false
}

// TypeName returns the event's nominal type tag, if any.
func (m Metadata) TypeName() (string, bool) {
	for _, e := range m.Core {
		if e.Kind == KindType {
			return e.Type, true
		}
	}
	return "", false
}

// ReplyTo returns the request key this event replies to, if any.
func (m Metadata) ReplyTo() (crypto.PrimaryKey, bool) {
	for _, e := range m.Core {
		if e.Kind == KindReply {
			return *e.Reply, true
		}
	}
	return crypto.PrimaryKey{}, false
}

// GetAuthorization returns the authorization entry, if any.
func (m Metadata) GetAuthorization() (Authorization, bool) {
	for _, e := range m.Core {
		if e.Kind == KindAuthorization {
			return *e.Authorization, true
		}
	}
	return Authorization{}, false
}

// Signatures returns all Signature entries attached to the event.
func (m Metadata) Signatures() []Signature {
	var out []Signature
	for _, e := range m.Core {
		if e.Kind == KindSignature {
			out = append(out, *e.Signature)
		}
	}
	return out
}

// Confidentiality returns the symmetric-key hash the payload is encrypted
// under, if any.
func (m Metadata) Confidentiality() (hash.Hash, bool) {
	for _, e := range m.Core {
		if e.Kind == KindConfidentiality {
			return *e.Confidentiality, true
		}
	}
	return hash.Hash{}, false
}

// canonicalJSON serializes v deterministically: json.Marshal on a struct
// with ordered, tagged fields already yields a stable byte sequence across
// runs (map ordering is the only nondeterminism Go's encoding/json
// introduces, and Metadata never holds a bare map), so canonical
// serialization is just json.Marshal with sorted key-hash slices.
func (m Metadata) canonicalJSON() ([]byte, error) {
	sorted := m
	sorted.Core = append([]Entry(nil), m.Core...)
	for i, e := range sorted.Core {
		if e.Authorization != nil {
			a := *e.Authorization
			a.Read.KeyHashes = sortedHashes(a.Read.KeyHashes)
			a.Write.KeyHashes = sortedHashes(a.Write.KeyHashes)
			sorted.Core[i].Authorization = &a
		}
		if e.Signature != nil {
			s := *e.Signature
			s.Covers = sortedHashes(s.Covers)
			sorted.Core[i].Signature = &s
		}
	}
	return json.Marshal(sorted)
}

// withoutSignatures returns a copy of m with every Signature entry
// removed, used to recover the metadata state a Signature's Covers hash
// was computed against.
func (m Metadata) withoutSignatures() Metadata {
	out := Metadata{Core: make([]Entry, 0, len(m.Core))}
	for _, e := range m.Core {
		if e.Kind == KindSignature {
			continue
		}
		out.Core = append(out.Core, e)
	}
	return out
}

func sortedHashes(hs []hash.Hash) []hash.Hash {
	if len(hs) == 0 {
		return hs
	}
	out := append([]hash.Hash(nil), hs...)
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Hash returns the canonical content hash of the metadata header.
func (m Metadata) Hash() (hash.Hash, error) {
	b, err := m.canonicalJSON()
	if err != nil {
		return hash.Hash{}, fmt.Errorf("event: marshal metadata: %w", err)
	}
	return hash.Sum(b), nil
}
