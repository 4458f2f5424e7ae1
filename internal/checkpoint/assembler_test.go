package checkpoint

import "testing"

func makeLabeledSlots(n int) [][]byte {
	slots := make([][]byte, n)
	for i := range slots {
		slots[i] = []byte{byte(i)}
	}
	return slots
}

func TestAssembleContiguous(t *testing.T) {
	desc := &Descriptor{Slots: makeLabeledSlots(8)}

	a, err := Assemble(desc, 5, 3)
	if err != nil {
		t.Fatalf("Assemble() error: %v", err)
	}
	want := []byte{5, 6, 7}
	for i, b := range a.Blocks {
		if b[0] != want[i] {
			t.Errorf("Blocks[%d] = %d, want %d", i, b[0], want[i])
		}
	}
}

func TestAssembleWraps(t *testing.T) {
	desc := &Descriptor{Slots: makeLabeledSlots(8)}

	a, err := Assemble(desc, 6, 4)
	if err != nil {
		t.Fatalf("Assemble() error: %v", err)
	}
	want := []byte{6, 7, 0, 1}
	if len(a.Blocks) != len(want) {
		t.Fatalf("Assemble() returned %d blocks, want %d", len(a.Blocks), len(want))
	}
	for i, b := range a.Blocks {
		if b[0] != want[i] {
			t.Errorf("Blocks[%d] = %d, want %d", i, b[0], want[i])
		}
	}
}

func TestAssembleRejectsOutOfRangeStart(t *testing.T) {
	desc := &Descriptor{Slots: makeLabeledSlots(8)}
	if _, err := Assemble(desc, 9, 1); err == nil {
		t.Fatal("expected error for start index beyond descriptor area")
	}
}

func TestAssembleRejectsOversizedLength(t *testing.T) {
	desc := &Descriptor{Slots: makeLabeledSlots(8)}
	if _, err := Assemble(desc, 0, 9); err == nil {
		t.Fatal("expected error for length exceeding descriptor area")
	}
}
