// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package engine

import (
	"net/netip"
	"testing"
)

func mustPfx(t *testing.T, s string) netip.Prefix {
	t.Helper()
	p, err := netip.ParsePrefix(s)
	if err != nil {
		t.Fatalf("ParsePrefix(%q) error: %v", s, err)
	}
	return p
}

func TestTrieInsertIdempotent(t *testing.T) {
	trie := NewTrie(FamilyIPv4)
	pfx := mustPfx(t, "10.0.0.0/24")
	n1 := trie.Insert(pfx)
	n1.Payload = "hello"
	n2 := trie.Insert(pfx)
	if n1 != n2 {
		t.Fatalf("Insert() returned a different node for the same prefix")
	}
	if n2.Payload != "hello" {
		t.Fatalf("Insert() lost the payload of the pre-existing node")
	}
	if trie.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", trie.Count())
	}
}

func TestTrieSearchExact(t *testing.T) {
	trie := NewTrie(FamilyIPv4)
	trie.Insert(mustPfx(t, "10.0.0.0/24"))
	trie.Insert(mustPfx(t, "10.0.0.0/16"))
	trie.Insert(mustPfx(t, "10.1.0.0/16"))

	if n := trie.SearchExact(mustPfx(t, "10.0.0.0/24")); n == nil {
		t.Fatalf("SearchExact(10.0.0.0/24) = nil, want a node")
	}
	if n := trie.SearchExact(mustPfx(t, "10.0.0.0/20")); n != nil {
		t.Fatalf("SearchExact(10.0.0.0/20) = %v, want nil (no such prefix node)", n)
	}
	if n := trie.SearchExact(mustPfx(t, "11.0.0.0/16")); n != nil {
		t.Fatalf("SearchExact(11.0.0.0/16) = %v, want nil", n)
	}
}

func TestTrieMoreAndLessSpecifics(t *testing.T) {
	trie := NewTrie(FamilyIPv4)
	root := trie.Insert(mustPfx(t, "10.0.0.0/8"))
	mid := trie.Insert(mustPfx(t, "10.0.0.0/16"))
	leaf1 := trie.Insert(mustPfx(t, "10.0.0.0/24"))
	leaf2 := trie.Insert(mustPfx(t, "10.0.1.0/24"))

	more := trie.GetMoreSpecifics(root, 1)
	if len(more) != 3 {
		t.Fatalf("GetMoreSpecifics(root, 1) returned %d nodes, want 3", len(more))
	}

	firstLayer := trie.GetMoreSpecifics(root, 0)
	if len(firstLayer) != 1 || firstLayer[0] != mid {
		t.Fatalf("GetMoreSpecifics(root, 0) = %v, want [mid]", firstLayer)
	}

	less := trie.GetLessSpecifics(leaf1)
	if len(less) != 2 {
		t.Fatalf("GetLessSpecifics(leaf1) returned %d nodes, want 2", len(less))
	}

	_ = leaf2
}

func TestTrieRemoveLeaf(t *testing.T) {
	trie := NewTrie(FamilyIPv4)
	trie.Insert(mustPfx(t, "10.0.0.0/16"))
	leaf := trie.Insert(mustPfx(t, "10.0.0.0/24"))
	trie.Remove(leaf)
	if trie.SearchExact(mustPfx(t, "10.0.0.0/24")) != nil {
		t.Fatalf("prefix still present after Remove")
	}
	if trie.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", trie.Count())
	}
}

func TestTrieRemoveTwoChildrenBecomesGlue(t *testing.T) {
	trie := NewTrie(FamilyIPv4)
	mid := trie.Insert(mustPfx(t, "10.0.0.0/16"))
	trie.Insert(mustPfx(t, "10.0.0.0/24"))
	trie.Insert(mustPfx(t, "10.0.128.0/24"))
	trie.Remove(mid)
	if trie.SearchExact(mustPfx(t, "10.0.0.0/16")) != nil {
		t.Fatalf("removed node still found by SearchExact")
	}
	if trie.Count() != 2 {
		t.Fatalf("Count() = %d, want 2 (both leaves should survive)", trie.Count())
	}
	if trie.SearchExact(mustPfx(t, "10.0.0.0/24")) == nil {
		t.Fatalf("leaf 10.0.0.0/24 lost after removing its glued-over ancestor")
	}
}

func TestTrieCountSubnets(t *testing.T) {
	trie := NewTrie(FamilyIPv4)
	trie.Insert(mustPfx(t, "10.0.0.0/23")) // expands to two /24s
	trie.Insert(mustPfx(t, "10.1.0.0/24")) // exactly one /24
	if got := trie.CountSubnets(24); got != 3 {
		t.Fatalf("CountSubnets(24) = %d, want 3", got)
	}
}

func TestTrieIPv6(t *testing.T) {
	trie := NewTrie(FamilyIPv6)
	n1 := trie.Insert(mustPfx(t, "2001:db8::/32"))
	n2 := trie.Insert(mustPfx(t, "2001:db8:1::/48"))
	if n1 == n2 {
		t.Fatalf("distinct prefixes got the same node")
	}
	if trie.SearchExact(mustPfx(t, "2001:db8::/32")) != n1 {
		t.Fatalf("SearchExact did not find the v6 prefix")
	}
}
