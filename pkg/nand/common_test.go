package nand

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_ProgramPage_Marks_Page_Before_Wear_Check_When_Limit_Exceeded(t *testing.T) {
	t.Parallel()

	dev := newTestDevice(t, smallInfo())
	m := commonModel(t, dev)
	data := pattern(m.geo.PageBytes(), 0x77)

	m.blocks[2].PECycles = uint32(m.geo.MaxPECycle) + 1

	err := m.ProgramPage(8, data)
	require.ErrorIs(t, err, ErrWearExceeded)
	require.True(t, m.Status().Failed())
	require.True(t, m.Programmed(8), "page stays marked after wear failure")

	err = m.ProgramPage(8, data)
	require.ErrorIs(t, err, ErrOverProgram)

	// At exactly the limit programming still works.
	m.blocks[3].PECycles = uint32(m.geo.MaxPECycle)
	require.NoError(t, m.ProgramPage(12, data))
	require.False(t, m.Status().Failed())
}

func Test_ProgramPage_Marks_Without_Store_When_Data_Nil(t *testing.T) {
	t.Parallel()

	dev := newTestDevice(t, smallInfo())
	m := commonModel(t, dev)

	require.NoError(t, m.ProgramPage(4, nil))
	require.True(t, m.Programmed(4))
	require.False(t, m.Store().Cached(1))

	// A marked page without data reads as erased.
	buf := make([]byte, m.geo.PageBytes())

	bits, err := m.ReadPage(4, buf)
	require.NoError(t, err)
	require.Zero(t, bits)
	require.Equal(t, pattern(len(buf), 0xFF), buf)
}

func Test_ProgramPage_Reads_Erased_When_Data_Nil_And_Block_Resident(t *testing.T) {
	t.Parallel()

	dev := newTestDevice(t, smallInfo())
	m := commonModel(t, dev)
	size := m.geo.PageBytes()
	buf := make([]byte, size)

	// Row 5 shares block 1 with row 4, so the block is cached and zero-filled.
	require.NoError(t, m.ProgramPage(4, pattern(size, 0x44)))
	require.NoError(t, m.ProgramPage(5, nil))

	_, err := m.ReadPage(5, buf)
	require.NoError(t, err)
	require.Equal(t, pattern(size, 0xFF), buf)

	_, err = m.ReadPage(4, buf)
	require.NoError(t, err)
	require.Equal(t, pattern(size, 0x44), buf)

	// Stale bytes from before an erase are not exposed either.
	require.NoError(t, m.ProgramPage(8, pattern(size, 0x88)))
	require.NoError(t, m.Erase(8))
	require.NoError(t, m.ProgramPage(8, nil))

	_, err = m.ReadPage(8, buf)
	require.NoError(t, err)
	require.Equal(t, pattern(size, 0xFF), buf)
}

func Test_Model_Returns_ErrOutOfRange_When_Row_Outside_Device(t *testing.T) {
	t.Parallel()

	dev := newTestDevice(t, smallInfo())
	m := commonModel(t, dev)
	buf := make([]byte, m.geo.PageBytes())

	for _, row := range []int{-1, m.geo.Rows()} {
		require.ErrorIs(t, m.Erase(row), ErrOutOfRange, "row %d", row)
		require.ErrorIs(t, m.ProgramPage(row, buf), ErrOutOfRange, "row %d", row)

		_, err := m.ReadPage(row, buf)
		require.ErrorIs(t, err, ErrOutOfRange, "row %d", row)
	}

	_, err := m.ReadPage(0, buf[:10])
	require.ErrorIs(t, err, ErrShortBuffer)
}

func Test_Command_Flushes_Store_When_Reset(t *testing.T) {
	t.Parallel()

	dev := newTestDevice(t, smallInfo())
	m := commonModel(t, dev)

	require.NoError(t, m.ProgramPage(0, pattern(m.geo.PageBytes(), 1)))

	// The handle is open but nothing is written yet.
	st, err := os.Stat(m.Store().Path(0))
	require.NoError(t, err)
	require.Zero(t, st.Size())

	require.NoError(t, dev.Reset())

	st, err = os.Stat(m.Store().Path(0))
	require.NoError(t, err)
	require.Positive(t, st.Size())
	require.Equal(t, uint64(1), m.Store().Stats().Writes)
}
