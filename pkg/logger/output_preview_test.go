package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreviewOutput(t *testing.T) {
	out := "interface Gi0/1\r\n switchport mode access\r\n\r\ninterface Gi0/2\n switchport mode trunk\ninterface Gi0/3\n"

	p := PreviewOutput(out, 2)
	assert.Equal(t, 5, p.Lines, "空行不计入")
	assert.Equal(t, []string{"interface Gi0/1", " switchport mode access"}, p.Head)
	assert.Equal(t, []string{" switchport mode trunk", "interface Gi0/3"}, p.Tail)
	assert.Equal(t, "head: [interface Gi0/1 ⟩  switchport mode access], tail: [ switchport mode trunk ⟩ interface Gi0/3]", p.String())

	short := PreviewOutput("a\nb", 5)
	assert.Equal(t, []string{"a", "b"}, short.Head)
	assert.Empty(t, short.Tail)

	// 行数介于 maxLines 与 2*maxLines 之间时首尾不重叠
	mid := PreviewOutput("1\n2\n3\n4", 3)
	assert.Equal(t, []string{"1", "2", "3"}, mid.Head)
	assert.Equal(t, []string{"4"}, mid.Tail)
}

func TestDebugCommandOutput(t *testing.T) {
	require.NoError(t, Init(Config{Level: "info"}))
	var buf bytes.Buffer
	SetOutput(&buf)
	DebugCommandOutput("sw1", "show run", "line", 3)
	assert.Empty(t, buf.String(), "非 debug 级别不记录")

	require.NoError(t, Init(Config{Level: "debug"}))
	SetOutput(&buf)
	DebugCommandOutput("sw1", "show run", "", 3)
	assert.Empty(t, buf.String(), "空回显不记录")
	DebugCommandOutput("sw1", "show run", "interface Gi0/1", 3)
	assert.Contains(t, buf.String(), "command echo head: [interface Gi0/1]")
	assert.Contains(t, buf.String(), "device=sw1")
}
