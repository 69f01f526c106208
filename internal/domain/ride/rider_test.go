package ride

import (
	"reflect"
	"testing"
)

func TestAllReady(t *testing.T) {
	tests := []struct {
		name   string
		riders []Rider
		want   bool
	}{
		{name: "empty roster", riders: nil, want: false},
		{name: "single ready", riders: []Rider{{ID: "u1", Ready: true}}, want: true},
		{name: "single not ready", riders: []Rider{{ID: "u1"}}, want: false},
		{name: "mixed", riders: []Rider{{ID: "u1", Ready: true}, {ID: "u2"}}, want: false},
		{name: "all ready", riders: []Rider{{ID: "u1", Ready: true}, {ID: "u2", Ready: true}}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AllReady(tt.riders); got != tt.want {
				t.Errorf("AllReady() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDedupeRiders(t *testing.T) {
	in := []Rider{
		{ID: "u1", DisplayName: "Ann", Ready: false},
		{ID: "u2", DisplayName: "Bob", Ready: true},
		{ID: " u1 ", DisplayName: "", Ready: true},
		{ID: "", DisplayName: "ghost"},
		{ID: "u2", DisplayName: "Bobby", Ready: false, IsAdmin: true},
	}

	want := []Rider{
		{ID: "u1", DisplayName: "Ann", Ready: true},
		{ID: "u2", DisplayName: "Bobby", Ready: false, IsAdmin: true},
	}

	if got := DedupeRiders(in); !reflect.DeepEqual(got, want) {
		t.Fatalf("DedupeRiders() = %+v, want %+v", got, want)
	}
}

func TestFindRider(t *testing.T) {
	riders := []Rider{{ID: "u1", DisplayName: "Ann"}}
	if r, ok := FindRider(riders, "u1"); !ok || r.DisplayName != "Ann" {
		t.Errorf("FindRider(u1) = %+v, %v", r, ok)
	}
	if _, ok := FindRider(riders, "nope"); ok {
		t.Error("FindRider(nope) should miss")
	}
}
