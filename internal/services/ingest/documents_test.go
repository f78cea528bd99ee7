package ingest

import (
	"os"
	"strings"
	"testing"

	"rag-chatbot/internal/core/rag"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDocuments(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantIDs []string
		wantErr bool
	}{
		{
			name:    "bare array",
			input:   `[{"id":"a","content":"x","metadata":{"category":"c"}},{"id":"b","content":"y"}]`,
			wantIDs: []string{"a", "b"},
		},
		{
			name:    "wrapped",
			input:   ` {"documents":[{"id":"doc_001","content":"z"}]}`,
			wantIDs: []string{"doc_001"},
		},
		{name: "empty", input: "  ", wantErr: true},
		{name: "malformed", input: `[{"id":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := DecodeDocuments([]byte(tt.input))
			if tt.wantErr {
				assert.ErrorIs(t, err, rag.ErrInvalidDocument)
				return
			}
			require.NoError(t, err)
			var ids []string
			for _, d := range docs {
				ids = append(ids, d.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestDecodeDocuments_KeepsMetadata(t *testing.T) {
	docs, err := DecodeDocuments([]byte(`[{"id":"a","content":"x","metadata":{"category":"python","difficulty":"beginner"}}]`))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "python", docs[0].Metadata["category"])
	assert.Nil(t, docs[0].Embedding)
}

func TestChunkDocuments(t *testing.T) {
	f := File{URI: "/data/User Guide.md", Name: "User Guide.md"}
	docs := chunkDocuments(f, []string{"first page", "second page"}, 600, 80)

	require.Len(t, docs, 2)
	tag := sourceTag("/data/User Guide.md")
	assert.Equal(t, "user_guide.md-"+tag+"-0000", docs[0].ID)
	assert.Equal(t, "user_guide.md-"+tag+"-0001", docs[1].ID)
	assert.Equal(t, "second page", docs[1].Content)
	assert.Equal(t, "/data/User Guide.md", docs[1].Metadata["source"])
	assert.Equal(t, 2, docs[1].Metadata["page"])
	assert.Equal(t, 1, docs[1].Metadata["chunk"])
	assert.Len(t, docs[1].Metadata["content_sha256"], 64)
}

func TestChunkDocuments_SameNameDifferentSources(t *testing.T) {
	a := chunkDocuments(File{URI: "s3://kb/docs/a/readme.md", Name: "readme.md"}, []string{"alpha"}, 600, 80)
	b := chunkDocuments(File{URI: "s3://kb/docs/b/readme.md", Name: "readme.md"}, []string{"beta"}, 600, 80)
	again := chunkDocuments(File{URI: "s3://kb/docs/a/readme.md", Name: "readme.md"}, []string{"alpha"}, 600, 80)

	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.NotEqual(t, a[0].ID, b[0].ID)
	assert.Equal(t, a[0].ID, again[0].ID)
}

func TestDocumentBase_LongNamesStayWithinIDLimit(t *testing.T) {
	long := strings.Repeat("chapter", 40) + ".pdf"
	base := documentBase(long)

	assert.LessOrEqual(t, len(base+"-"+sourceTag("/x")+"-0000"), rag.MaxIDLength)
	assert.NotEqual(t, base, documentBase(strings.Repeat("chapter", 41)+".pdf"))
	assert.Equal(t, base, documentBase(long))
}

func TestDecodeDocuments_SampleKnowledgeBase(t *testing.T) {
	data, err := os.ReadFile("../../../testdata/sample_documents.json")
	require.NoError(t, err)

	docs, err := DecodeDocuments(data)
	require.NoError(t, err)
	require.Len(t, docs, 10)

	seen := map[string]bool{}
	for _, d := range docs {
		assert.NotEmpty(t, d.Content)
		assert.False(t, seen[d.ID], "duplicate id %s", d.ID)
		seen[d.ID] = true
		assert.Contains(t, d.Metadata, "category")
	}
}
