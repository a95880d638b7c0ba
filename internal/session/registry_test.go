// Crossview - Real-Time Intersection Traffic Visualization and Chat
// Copyright 2026 Junction Lab
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/junctionlab/crossview

package session

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestAddAssignsGuestName(t *testing.T) {
	r := NewRegistry()

	user := r.Add("0f3c9a21-1111-2222-3333-444455556666", "")
	if user.Name != "guest-0f3c9a21" {
		t.Errorf("guest name = %q, want guest-0f3c9a21", user.Name)
	}

	named := r.Add("abc", "alice")
	if named.Name != "alice" {
		t.Errorf("name = %q, want alice", named.Name)
	}
}

func TestAddIsIdempotent(t *testing.T) {
	r := NewRegistry()

	first := r.Add("s1", "alice")
	second := r.Add("s1", "someone-else")

	if second.Name != first.Name {
		t.Errorf("re-add changed name: %q -> %q", first.Name, second.Name)
	}
	if r.Count() != 1 {
		t.Errorf("count = %d, want 1", r.Count())
	}
}

func TestRemove(t *testing.T) {
	r := NewRegistry()
	r.Add("s1", "alice")
	if _, err := r.SetLocation("s1", 52.4, 16.9); err != nil {
		t.Fatalf("SetLocation: %v", err)
	}

	user, ok := r.Remove("s1")
	if !ok || user.Name != "alice" {
		t.Fatalf("Remove returned (%+v, %v)", user, ok)
	}
	if r.Count() != 0 {
		t.Errorf("count after remove = %d, want 0", r.Count())
	}
	if locs := r.Locations(); len(locs) != 0 {
		t.Errorf("locations should be dropped with the session, got %d", len(locs))
	}

	if _, ok := r.Remove("s1"); ok {
		t.Error("second remove should report missing session")
	}
}

func TestSetName(t *testing.T) {
	r := NewRegistry()
	r.Add("s1", "")
	if _, err := r.SetLocation("s1", 10, 20); err != nil {
		t.Fatalf("SetLocation: %v", err)
	}

	user, err := r.SetName("s1", "bob")
	if err != nil {
		t.Fatalf("SetName: %v", err)
	}
	if user.Name != "bob" {
		t.Errorf("name = %q, want bob", user.Name)
	}

	locs := r.Locations()
	if len(locs) != 1 || locs[0].Name != "bob" {
		t.Errorf("location name should follow the rename, got %+v", locs)
	}

	if _, err := r.SetName("s1", ""); err == nil {
		t.Error("empty name should be rejected")
	}
	if _, err := r.SetName("missing", "x"); err == nil {
		t.Error("unknown session should be rejected")
	}
}

func TestSetLocationValidation(t *testing.T) {
	r := NewRegistry()
	r.Add("s1", "alice")

	cases := []struct {
		lat, lng float64
		wantErr  bool
	}{
		{52.4, 16.9, false},
		{-90, 180, false},
		{91, 0, true},
		{-91, 0, true},
		{0, 181, true},
		{0, -181, true},
	}
	for _, tc := range cases {
		_, err := r.SetLocation("s1", tc.lat, tc.lng)
		if tc.wantErr && err == nil {
			t.Errorf("(%g, %g): expected error", tc.lat, tc.lng)
		}
		if !tc.wantErr && err != nil {
			t.Errorf("(%g, %g): unexpected error %v", tc.lat, tc.lng, err)
		}
	}

	if _, err := r.SetLocation("missing", 0, 0); err == nil {
		t.Error("unknown session should be rejected")
	}
}

func TestUsersOrderedByConnectionTime(t *testing.T) {
	r := NewRegistry()

	base := time.Now()
	step := 0
	r.now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Second)
	}

	r.Add("s3", "carol")
	r.Add("s1", "alice")
	r.Add("s2", "bob")

	users := r.Users()
	if len(users) != 3 {
		t.Fatalf("count = %d, want 3", len(users))
	}
	got := []string{users[0].Name, users[1].Name, users[2].Name}
	want := []string{"carol", "alice", "bob"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestConcurrentAccess(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("s%d", n)
			r.Add(id, "")
			r.SetLocation(id, float64(n), float64(n))
			r.Users()
			r.Locations()
			if n%2 == 0 {
				r.Remove(id)
			}
		}(i)
	}
	wg.Wait()

	if r.Count() != 10 {
		t.Errorf("count = %d, want 10", r.Count())
	}
}
