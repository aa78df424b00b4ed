package drive

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentity(t *testing.T) {
	tests := []struct {
		root string
		want string
	}{
		{root: `E:\`, want: "E"},
		{root: `g:`, want: "G"},
		{root: "/media/alex/SDCARD", want: "SDCARD"},
		{root: "/Volumes/NO NAME/", want: "NO_NAME"},
		{root: "/run/media/u/canon-eos", want: "CANON-EOS"},
		{root: "/mnt/Photos 2024!", want: "PHOTOS_2024"},
		{root: "/", want: UnknownIdentity},
		{root: "", want: UnknownIdentity},
		{root: "/mnt/???", want: UnknownIdentity},
	}
	for _, tt := range tests {
		t.Run(tt.root, func(t *testing.T) {
			assert.Equal(t, tt.want, Identity(tt.root))
		})
	}
}

func TestUsage_Used(t *testing.T) {
	u := Usage{Total: 100, Free: 25}
	assert.Equal(t, int64(75), u.Used())
	assert.InDelta(t, 0.75, u.UsedFraction(), 1e-9)

	assert.Equal(t, int64(0), Usage{Total: 10, Free: 20}.Used())
	assert.Zero(t, Usage{}.UsedFraction())
}

func TestDescribe(t *testing.T) {
	fake := func(root string) (Usage, error) {
		return Usage{Total: 10, Free: 5}, nil
	}
	info, err := Describe("/media/u/CARD", fake)
	require.NoError(t, err)
	assert.Equal(t, "CARD", info.Identity)
	assert.Equal(t, int64(5), info.Usage.Free)

	boom := errors.New("boom")
	_, err = Describe("/x", func(string) (Usage, error) { return Usage{}, boom })
	assert.ErrorIs(t, err, boom)
}
