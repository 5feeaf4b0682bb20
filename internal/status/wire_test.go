package status

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatusInfo(t *testing.T) {
	t.Parallel()

	body := []byte(`{"StatusInfo":[{"StatusName":"Submitted","StatusDateUF":"1700000000000"}]}`)
	records, err := ParseStatusInfo(body)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Submitted", records[0].Name)
	assert.Equal(t, int64(1700000000000), records[0].TimestampMillis)
}

func TestParseStatusInfoKeepsSourceOrder(t *testing.T) {
	t.Parallel()

	body := []byte(`{"StatusInfo":[
		{"StatusName":"Registered","StatusDateUF":"1690000000000"},
		{"StatusName":"In production","StatusDateUF":"1695000000000"},
		{"StatusName":"Ready","StatusDateUF":"1700000000000"}
	]}`)
	records, err := ParseStatusInfo(body)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "Registered", records[0].Name)
	assert.Equal(t, "In production", records[1].Name)
	assert.Equal(t, "Ready", records[2].Name)
	for i := 1; i < len(records); i++ {
		assert.LessOrEqual(t, records[i-1].TimestampMillis, records[i].TimestampMillis)
	}
}

func TestParseStatusInfoErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{name: "empty body", body: ""},
		{name: "not json", body: "<html>Just a moment...</html>"},
		{name: "empty status list", body: `{"StatusInfo":[]}`},
		{name: "missing envelope", body: `{}`},
		{name: "non numeric timestamp", body: `{"StatusInfo":[{"StatusName":"X","StatusDateUF":"soon"}]}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseStatusInfo([]byte(tc.body))
			require.Error(t, err)
		})
	}
}

func TestEncodeParseRoundTrip(t *testing.T) {
	t.Parallel()

	in := []Record{
		{Name: "Документи отримано", TimestampMillis: 1688000000000},
		{Name: "Submitted", TimestampMillis: 1700000000000},
	}
	data, err := EncodeStatusInfo(in)
	require.NoError(t, err)

	out, err := ParseStatusInfo(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestBuildTargetURL(t *testing.T) {
	t.Parallel()

	got := BuildTargetURL("https://example.test/Home/CurrentSessionStatus", "1006655", 1234567890123)
	assert.Equal(t, "https://example.test/Home/CurrentSessionStatus?sessionId=1006655&_=1234567890123", got)
}

func TestNonceHasThirteenDigits(t *testing.T) {
	t.Parallel()

	for i := 0; i < 100; i++ {
		n := Nonce()
		assert.Len(t, strconv.FormatInt(n, 10), 13)
	}
}
