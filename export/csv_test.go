package export

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCSV(t *testing.T) {
	var buf bytes.Buffer
	c := &CSV{W: &buf}
	require.NoError(t, c.Write(context.Background(), feed(testRecords(2))))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, "ID,Identifier,Source,Freq,Threshold,Location,StartUnixMilli,EndUnixMilli,Peak", lines[0])
	require.Equal(t, "b,station,hackrf,433920000,-20.000000,JN47,1709287260000,1709287262000,-9.000000", lines[2])
}
