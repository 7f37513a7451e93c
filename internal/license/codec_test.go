package license

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord() *Record {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return &Record{
		SalesKey:           "POS1M234567890A",
		PlanID:             "retail-pro",
		PlanName:           "Retail Pro",
		ExpiryDate:         created.AddDate(1, 0, 0),
		MachineFingerprint: "f0e1d2c3b4a5968778695a4b3c2d1e0f0123456789abcdef0123456789abcdef",
		LicenseType:        TypeHost,
		CreatedAt:          created,
		MaxDevices:         4,
		Features:           []string{"reservations", "stock"},
	}
}

func TestCodecRoundTrip(t *testing.T) {
	codec := NewCodec()
	record := testRecord()

	encoded, err := codec.Encode(record)
	require.NoError(t, err)
	require.NotEmpty(t, encoded)
	assert.True(t, strings.HasPrefix(encoded, "POSL1."))

	decoded, err := codec.Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, record, decoded)
}

func TestCodecDecodeSurvivesWhitespace(t *testing.T) {
	// License files are copy/pasted during recovery; stray whitespace from
	// the clipboard must not break decoding.
	codec := NewCodec()
	encoded, err := codec.Encode(testRecord())
	require.NoError(t, err)

	decoded, err := codec.Decode("  " + encoded + "\n")
	require.NoError(t, err)
	assert.Equal(t, testRecord(), decoded)
}

func TestCodecDecodeRejectsEveryByteFlip(t *testing.T) {
	codec := NewCodec()
	encoded, err := codec.Encode(testRecord())
	require.NoError(t, err)

	// Flip one byte at a time across the whole token. Every mutation must
	// fail decoding; no altered-but-consistent record may ever come back.
	for i := 0; i < len(encoded); i++ {
		mutated := []byte(encoded)
		mutated[i] ^= 0x01
		if string(mutated) == encoded {
			continue
		}

		decoded, err := codec.Decode(string(mutated))
		assert.ErrorIs(t, err, ErrDecode, "byte %d flip must fail closed", i)
		assert.Nil(t, decoded)
	}
}

func TestCodecDecodeRejectsUnknownVersion(t *testing.T) {
	codec := NewCodec()
	encoded, err := codec.Encode(testRecord())
	require.NoError(t, err)

	parts := strings.SplitN(encoded, ".", 2)
	mutated := "POSL9." + parts[1]

	_, err = codec.Decode(mutated)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestCodecDecodeRejectsGarbage(t *testing.T) {
	codec := NewCodec()

	for _, input := range []string{
		"",
		"not-a-license",
		"POSL1.onlytwoparts",
		"POSL1..",
		"a.b.c.d",
	} {
		_, err := codec.Decode(input)
		assert.ErrorIs(t, err, ErrDecode, "input %q", input)
	}
}

func TestCodecDecodeRejectsForeignKey(t *testing.T) {
	record := testRecord()

	encoded, err := NewCodecWithSecret("vendor-build-A").Encode(record)
	require.NoError(t, err)

	_, err = NewCodecWithSecret("vendor-build-B").Decode(encoded)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestCodecEncodeNil(t *testing.T) {
	_, err := NewCodec().Encode(nil)
	require.Error(t, err)
}

func TestCodecDecodeRejectsEmptyRequiredFields(t *testing.T) {
	codec := NewCodec()
	record := testRecord()
	record.MachineFingerprint = ""

	encoded, err := codec.Encode(record)
	require.NoError(t, err)

	// Structurally valid and correctly signed, but incomplete: fail closed.
	_, err = codec.Decode(encoded)
	assert.ErrorIs(t, err, ErrDecode)
}
