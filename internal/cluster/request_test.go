package cluster

import "testing"

func TestRequestReprocessKey(t *testing.T) {
	req := NewRequest(&Client{ID: 7}, 42, "foo")
	if got, want := req.reprocessKey(), "7:42"; got != want {
		t.Errorf("reprocessKey() = %q, want %q", got, want)
	}
}

func TestRequestReprocessKeyWithNilClient(t *testing.T) {
	req := NewRequest(nil, 42, "foo")
	if got, want := req.reprocessKey(), "0:42"; got != want {
		t.Errorf("reprocessKey() = %q, want %q", got, want)
	}
}

func TestRemoveRequestFromListPreservesOrder(t *testing.T) {
	a := NewRequest(nil, 1, "a")
	b := NewRequest(nil, 2, "b")
	c := NewRequest(nil, 3, "c")
	list := []*Request{a, b, c}

	list = removeRequestFromList(list, b)

	if len(list) != 2 || list[0] != a || list[1] != c {
		t.Errorf("removeRequestFromList result = %+v, want [a, c]", list)
	}
}
