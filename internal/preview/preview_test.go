package preview

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestFileType(t *testing.T) {
	cases := map[string]string{
		"data.csv":   "text",
		"Sheet.XLSX": "tabular",
		"photo.png":  "image",
		"clip.mp3":   "audio",
		"movie.mkv":  "video",
		"dump.tar":   "archive",
		"model.bin":  "unknown",
	}
	for name, want := range cases {
		if got := FileType(name); got != want {
			t.Fatalf("FileType(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestKind(t *testing.T) {
	cases := map[string]string{
		"a.csv":    KindTabular,
		"a.xlsx":   KindTabular,
		"a.json":   KindJSON,
		"a.jsonl":  KindJSON,
		"a.txt":    KindText,
		"a.md":     KindText,
		"a.png":    KindImage,
		"a.exe":    KindUnsupported,
		"weird.gz": KindUnsupported,
	}
	for name, want := range cases {
		if got := Kind(name); got != want {
			t.Fatalf("Kind(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestGenerate_CSV(t *testing.T) {
	data := []byte("name,score\nalice,10\nbob,20\ncarol,30\n")

	p := Generate("results.csv", data, 2)
	if p.Kind != KindTabular {
		t.Fatalf("kind = %q", p.Kind)
	}
	if len(p.Columns) != 2 || p.Columns[0] != "name" {
		t.Fatalf("columns = %v", p.Columns)
	}
	if p.ItemCount != 2 || !p.Truncated {
		t.Fatalf("item_count=%d truncated=%v, want 2/true", p.ItemCount, p.Truncated)
	}

	// column order must survive serialization
	if !bytes.HasPrefix(bytes.TrimSpace(p.Items[0]), []byte(`{"name"`)) {
		t.Fatalf("first item lost column order: %s", p.Items[0])
	}
}

func TestGenerate_CSVRaggedRows(t *testing.T) {
	data := []byte("a,b,c\n1,2\n")

	p := Generate("ragged.csv", data, 5)
	if p.Kind != KindTabular {
		t.Fatalf("kind = %q, message %q", p.Kind, p.Message)
	}
	var row map[string]string
	if err := json.Unmarshal(p.Items[0], &row); err != nil {
		t.Fatalf("unmarshal row: %v", err)
	}
	if row["c"] != "" {
		t.Fatalf("missing cell should be empty, got %q", row["c"])
	}
}

func TestGenerate_Excel(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	_ = f.SetCellValue(sheet, "A1", "id")
	_ = f.SetCellValue(sheet, "B1", "label")
	_ = f.SetCellValue(sheet, "A2", 1)
	_ = f.SetCellValue(sheet, "B2", "cat")

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write xlsx: %v", err)
	}

	p := Generate("labels.xlsx", buf.Bytes(), 10)
	if p.Kind != KindTabular {
		t.Fatalf("kind = %q, message %q", p.Kind, p.Message)
	}
	if p.ItemCount != 1 {
		t.Fatalf("item_count = %d, want 1", p.ItemCount)
	}
	if len(p.Columns) != 2 || p.Columns[1] != "label" {
		t.Fatalf("columns = %v", p.Columns)
	}
}

func TestGenerate_JSONArray(t *testing.T) {
	data := []byte(`[{"a":1},{"a":2},{"a":3}]`)

	p := Generate("items.json", data, 2)
	if p.Kind != KindJSON {
		t.Fatalf("kind = %q", p.Kind)
	}
	if p.ItemCount != 2 || !p.Truncated {
		t.Fatalf("item_count=%d truncated=%v", p.ItemCount, p.Truncated)
	}
}

func TestGenerate_JSONObject(t *testing.T) {
	data := []byte(`{"config":true}`)

	p := Generate("single.json", data, 5)
	if p.Kind != KindJSON {
		t.Fatalf("kind = %q", p.Kind)
	}
	if p.ItemCount != 1 || p.Truncated {
		t.Fatalf("item_count=%d truncated=%v", p.ItemCount, p.Truncated)
	}
}

func TestGenerate_JSONL(t *testing.T) {
	data := []byte(`{"instruction":"a"}` + "\n\n" + `{"instruction":"b"}` + "\n" + `{"instruction":"c"}` + "\n")

	p := Generate("train.jsonl", data, 2)
	if p.Kind != KindJSON {
		t.Fatalf("kind = %q, message %q", p.Kind, p.Message)
	}
	if p.ItemCount != 2 || !p.Truncated {
		t.Fatalf("item_count=%d truncated=%v", p.ItemCount, p.Truncated)
	}
}

func TestGenerate_Text(t *testing.T) {
	data := []byte("line one\nline two\nline three")

	p := Generate("notes.txt", data, 2)
	if p.Kind != KindText {
		t.Fatalf("kind = %q", p.Kind)
	}
	if p.ItemCount != 2 || !p.Truncated {
		t.Fatalf("item_count=%d truncated=%v", p.ItemCount, p.Truncated)
	}

	var line string
	if err := json.Unmarshal(p.Items[0], &line); err != nil {
		t.Fatalf("unmarshal line: %v", err)
	}
	if line != "line one" {
		t.Fatalf("line = %q", line)
	}
}

func TestGenerate_SoftErrors(t *testing.T) {
	cases := []struct {
		name     string
		filename string
		data     []byte
	}{
		{"corrupt json", "bad.json", []byte(`{"unclosed":`)},
		{"corrupt jsonl", "bad.jsonl", []byte("not json at all\n")},
		{"corrupt xlsx", "bad.xlsx", []byte("definitely not a zip")},
		{"empty csv", "empty.csv", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := Generate(tc.filename, tc.data, 5)
			if p.Kind != KindError {
				t.Fatalf("kind = %q, want error", p.Kind)
			}
			if p.Message == "" {
				t.Fatal("error preview must carry a message")
			}
		})
	}
}

func TestGenerate_ImageAndUnsupported(t *testing.T) {
	p := Generate("photo.png", []byte{0x89, 0x50}, 5)
	if p.Kind != KindImage {
		t.Fatalf("kind = %q", p.Kind)
	}

	p = Generate("binary.bin", []byte{0x00}, 5)
	if p.Kind != KindUnsupported {
		t.Fatalf("kind = %q", p.Kind)
	}

	// content is never sniffed; classification follows the extension
	p = Generate("fake.png", []byte(`{"actually":"json"}`), 5)
	if p.Kind != KindImage {
		t.Fatalf("kind = %q, extension must win", p.Kind)
	}
}

func TestGenerate_DefaultMaxItems(t *testing.T) {
	var b strings.Builder
	b.WriteString("col\n")
	for i := 0; i < 25; i++ {
		b.WriteString("x\n")
	}

	p := Generate("wide.csv", []byte(b.String()), 0)
	if p.ItemCount != 10 || !p.Truncated {
		t.Fatalf("item_count=%d truncated=%v, want default cap 10", p.ItemCount, p.Truncated)
	}
}
