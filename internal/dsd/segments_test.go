package dsd

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/htmlindex"
)

// writeDSDZip builds a minimal DSD container holding one contents XML.
func writeDSDZip(t *testing.T, xmlBody string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "sample.dsd")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	zw := zip.NewWriter(f)
	w, err := zw.Create("doc_contents.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(xmlBody))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return path
}

func TestExtractSegments(t *testing.T) {
	t.Parallel()

	path := writeDSDZip(t, `<DOCUMENT>
<DOCUMENT-HEADER><TITLE>메타데이터 제목</TITLE></DOCUMENT-HEADER>
<BODY>
<P>주석 1. 일반사항</P>
<P>회사는 제조업을 영위합니다</P>
<TABLE>
<ROW><CELL>구분</CELL><CELL>당기</CELL></ROW>
<ROW><CELL>현금</CELL><CELL>1,000</CELL></ROW>
</TABLE>
<P>중복 단락</P>
<P>중복 단락</P>
</BODY>
</DOCUMENT>`)

	segments, err := ExtractSegments(path)
	require.NoError(t, err)

	var texts []string
	for _, s := range segments {
		texts = append(texts, s.Text)
	}
	assert.NotContains(t, texts, "메타데이터 제목")

	require.Len(t, segments, 4)
	assert.Equal(t, KindParagraph, segments[0].Kind)
	assert.Equal(t, "주석 1. 일반사항", segments[0].Text)
	assert.Equal(t, "회사는 제조업을 영위합니다", segments[1].Text)

	assert.Equal(t, KindTable, segments[2].Kind)
	assert.Equal(t, [][]string{{"구분", "당기"}, {"현금", "1,000"}}, segments[2].Rows)
	assert.Equal(t, "구분\t당기\n현금\t1,000", segments[2].Text)

	// Adjacent duplicates collapse to one.
	assert.Equal(t, "중복 단락", segments[3].Text)
}

func TestExtractSegmentsRepairsBareAmpersands(t *testing.T) {
	t.Parallel()

	// "&cr;" is not a valid XML entity; the repair pass must escape it and
	// the literal marker must survive into the segment text.
	path := writeDSDZip(t, `<DOCUMENT><BODY>
<P>첫째 줄&cr;둘째 줄</P>
<P>R&D 비용</P>
</BODY></DOCUMENT>`)

	segments, err := ExtractSegments(path)
	require.NoError(t, err)
	require.Len(t, segments, 2)
	assert.Equal(t, "첫째 줄&cr;둘째 줄", segments[0].Text)
	assert.Equal(t, "R&D 비용", segments[1].Text)
}

func TestDecodeToUTF8EUCKR(t *testing.T) {
	t.Parallel()

	enc, err := htmlindex.Get("euc-kr")
	require.NoError(t, err)
	encoded, err := enc.NewEncoder().Bytes([]byte("현금및현금성자산"))
	require.NoError(t, err)

	assert.Equal(t, "현금및현금성자산", decodeToUTF8(encoded))
}

func TestEscapeBareAmpersands(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare", "A & B", "A &amp; B"},
		{"existing entity kept", "A &amp; B", "A &amp; B"},
		{"numeric entity kept", "&#65;&#x41;", "&#65;&#x41;"},
		{"unknown entity escaped", "&cr;", "&amp;cr;"},
		{"trailing ampersand", "A &", "A &amp;"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, escapeBareAmpersands(tt.in))
		})
	}
}

func TestKeepText(t *testing.T) {
	t.Parallel()

	assert.False(t, keepText(""))
	assert.False(t, keepText("&cr;"))
	assert.False(t, keepText("가"))
	assert.True(t, keepText("-"))
	assert.True(t, keepText("현금"))
}
