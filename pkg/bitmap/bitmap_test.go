package bitmap

import (
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func Test_Bitmap_Get_Reflects_Set_And_Clear_When_Index_In_Range(t *testing.T) {
	t.Parallel()

	bm := New(16, 0)

	bm.Set(5)

	if got := bm.Get(5); got == 0 {
		t.Fatalf("Get(5)=%d after Set, want non-zero", got)
	}

	if got, want := bm.Get(4), 0; got != want {
		t.Fatalf("Get(4)=%d, want=%d", got, want)
	}

	bm.Clear(5)

	if got, want := bm.Get(5), 0; got != want {
		t.Fatalf("Get(5)=%d after Clear, want=%d", got, want)
	}
}

func Test_Bitmap_Ignores_Access_When_Index_Out_Of_Range(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		size  uint
		base  uint
		index uint
	}{
		{name: "BelowBase", size: 8, base: 10, index: 9},
		{name: "AtEnd", size: 8, base: 10, index: 18},
		{name: "FarAbove", size: 8, base: 0, index: 1 << 20},
		{name: "EmptyBitmap", size: 0, base: 0, index: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			bm := New(tt.size, tt.base)
			before := slices.Clone(bm.Bytes())

			bm.Set(tt.index)
			bm.Clear(tt.index)

			if got, want := bm.Get(tt.index), -1; got != want {
				t.Fatalf("Get(%d)=%d, want=%d", tt.index, got, want)
			}

			if diff := cmp.Diff(before, bm.Bytes()); diff != "" {
				t.Fatalf("backing storage changed (-before +after):\n%s", diff)
			}
		})
	}
}

func Test_Bitmap_Addresses_Relative_To_Base_When_Base_Is_Non_Zero(t *testing.T) {
	t.Parallel()

	bm := New(10, 100)

	bm.Set(100)
	bm.Set(109)

	if got, want := bm.Bytes(), []byte{0x01, 0x02}; !cmp.Equal(got, want) {
		t.Fatalf("Bytes()=%#v, want=%#v", got, want)
	}

	if got, want := bm.Count(), 2; got != want {
		t.Fatalf("Count()=%d, want=%d", got, want)
	}
}

func Test_Bitmap_Load_Masks_Trailing_Bits_When_Size_Not_Byte_Aligned(t *testing.T) {
	t.Parallel()

	bm := New(12, 0)

	n := bm.Load([]byte{0xFF, 0xFF, 0xFF})

	if got, want := n, 2; got != want {
		t.Fatalf("Load()=%d, want=%d", got, want)
	}

	if got, want := bm.Count(), 12; got != want {
		t.Fatalf("Count()=%d, want=%d", got, want)
	}

	if got, want := bm.Get(11), 1; got != want {
		t.Fatalf("Get(11)=%d, want=%d", got, want)
	}
}

func Test_Bitmap_Backing_Size_Is_Rounded_Up_To_Whole_Bytes(t *testing.T) {
	t.Parallel()

	for size, want := range map[uint]int{0: 0, 1: 1, 8: 1, 9: 2, 64: 8, 65: 9} {
		if got := len(New(size, 0).Bytes()); got != want {
			t.Errorf("len(New(%d).Bytes())=%d, want=%d", size, got, want)
		}
	}
}
