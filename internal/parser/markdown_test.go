package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMarkdown(t *testing.T) {
	doc, err := ParseMarkdown("---\nname: 张三\ntags: [work]\n---\n# Notes\n\nmet at the conference\n\n## Job\nengineer\n")
	require.NoError(t, err)
	assert.Equal(t, "张三", doc.Title)
	assert.Equal(t, "张三", doc.GetFrontmatterString("name"))
	assert.Equal(t, "", doc.GetFrontmatterString("tags"))
	require.Len(t, doc.Sections, 2)
	assert.Equal(t, Section{Level: 1, Heading: "Notes", Content: "met at the conference"}, doc.Sections[0])
	assert.Equal(t, Section{Level: 2, Heading: "Job", Content: "engineer"}, doc.Sections[1])

	_, err = ParseMarkdown("---\nname: [unclosed\n---\nbody")
	assert.Error(t, err)
}

func TestPersonTexts(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		content string
		want    []PersonText
	}{
		{
			name:    "plain text",
			path:    "a.txt",
			content: "  李四 is a doctor  \n",
			want:    []PersonText{{Ref: "a.txt", Text: "李四 is a doctor"}},
		},
		{
			name:    "empty",
			path:    "b.md",
			content: "   \n\t",
			want:    nil,
		},
		{
			name:    "single person with front matter name",
			path:    "c.md",
			content: "---\nname: 王五\n---\nlikes tea, birthday 03-14",
			want:    []PersonText{{Ref: "c.md", Text: "王五\nlikes tea, birthday 03-14"}},
		},
		{
			name:    "front matter name already mentioned",
			path:    "d.md",
			content: "---\nname: 王五\n---\n王五 likes tea",
			want:    []PersonText{{Ref: "d.md", Text: "王五 likes tea"}},
		},
		{
			name:    "one section is one person",
			path:    "e.md",
			content: "## 张三\nengineer",
			want:    []PersonText{{Ref: "e.md", Text: "## 张三\nengineer"}},
		},
		{
			name:    "sections split persons",
			path:    "team.md",
			content: "# Team\n\n## 张三\nengineer\n\n## 李四\n\n## 王五\ndesigner, knows 张三\n",
			want: []PersonText{
				{Ref: "team.md#张三", Text: "张三\nengineer"},
				{Ref: "team.md#王五", Text: "王五\ndesigner, knows 张三"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PersonTexts(tt.path, tt.content)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
