package imapadapter

import "testing"

func TestUidRangeCoversWholeMailboxWithoutStar(t *testing.T) {
	set := uidRange(1, MaxUID)
	if set.Empty() {
		t.Fatal("uidRange(1, MaxUID) produced an empty set")
	}
	if !set.Contains(1) {
		t.Fatal("uidRange(1, MaxUID) does not contain UID 1")
	}
	if !set.Contains(MaxUID) {
		t.Fatal("uidRange(1, MaxUID) does not contain MaxUID")
	}
}

func TestUidRangeBounded(t *testing.T) {
	set := uidRange(5, 10)
	if set.Contains(4) || set.Contains(11) {
		t.Fatal("uidRange(5, 10) leaked outside its bounds")
	}
	if !set.Contains(5) || !set.Contains(10) {
		t.Fatal("uidRange(5, 10) excludes an endpoint")
	}
}
