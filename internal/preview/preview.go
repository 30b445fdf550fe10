package preview

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/iancoleman/orderedmap"
	"github.com/xuri/excelize/v2"
)

// Preview kinds. Classification is by declared extension only; content is
// never executed or sniffed.
const (
	KindTabular     = "tabular"
	KindJSON        = "json"
	KindText        = "text"
	KindImage       = "image"
	KindUnsupported = "unsupported"
	KindError       = "error"
)

type Preview struct {
	Kind      string            `json:"kind"`
	Columns   []string          `json:"columns,omitempty"`
	Items     []json.RawMessage `json:"items"`
	ItemCount int               `json:"item_count"`
	Truncated bool              `json:"truncated"`
	Message   string            `json:"message,omitempty"`
}

// FileType buckets a filename the way version records store file_type.
func FileType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".csv", ".json", ".jsonl", ".md", ".xml", ".yaml", ".yml":
		return "text"
	case ".xlsx", ".xls":
		return "tabular"
	case ".jpg", ".jpeg", ".png", ".bmp", ".gif", ".tiff", ".webp":
		return "image"
	case ".wav", ".mp3", ".flac", ".ogg", ".m4a":
		return "audio"
	case ".mp4", ".avi", ".mov", ".mkv", ".wmv":
		return "video"
	case ".zip", ".tar", ".gz", ".rar", ".7z":
		return "archive"
	default:
		return "unknown"
	}
}

// Kind picks the preview renderer for a filename.
func Kind(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".xlsx", ".xls":
		return KindTabular
	case ".json", ".jsonl":
		return KindJSON
	case ".txt", ".md", ".xml", ".yaml", ".yml":
		return KindText
	case ".jpg", ".jpeg", ".png", ".bmp", ".gif", ".tiff", ".webp":
		return KindImage
	default:
		return KindUnsupported
	}
}

// Generate renders a bounded preview of one file. Failures come back as an
// error-kind preview instead of a Go error so one corrupt file never aborts a
// batch.
func Generate(filename string, data []byte, maxItems int) Preview {
	if maxItems <= 0 {
		maxItems = 10
	}

	switch Kind(filename) {
	case KindTabular:
		p, err := tabularPreview(filename, data, maxItems)
		if err != nil {
			return errorPreview(err)
		}
		return p
	case KindJSON:
		p, err := jsonPreview(filename, data, maxItems)
		if err != nil {
			return errorPreview(err)
		}
		return p
	case KindText:
		return textPreview(data, maxItems)
	case KindImage:
		return Preview{Kind: KindImage, Items: []json.RawMessage{}, ItemCount: 0}
	default:
		return Preview{Kind: KindUnsupported, Items: []json.RawMessage{}, ItemCount: 0}
	}
}

func errorPreview(err error) Preview {
	return Preview{Kind: KindError, Items: []json.RawMessage{}, Message: err.Error()}
}

func tabularPreview(filename string, data []byte, maxItems int) (Preview, error) {
	var headers []string
	var rows [][]string
	var err error

	if strings.HasSuffix(strings.ToLower(filename), ".csv") {
		headers, rows, err = parseCSV(data)
	} else {
		headers, rows, err = parseExcel(data)
	}
	if err != nil {
		return Preview{}, err
	}

	truncated := len(rows) > maxItems
	if truncated {
		rows = rows[:maxItems]
	}

	items := make([]json.RawMessage, 0, len(rows))
	for _, row := range rows {
		// orderedmap keeps the original column order through JSON
		// serialization; plain maps would shuffle it.
		m := orderedmap.New()
		for i, col := range headers {
			val := ""
			if i < len(row) {
				val = row[i]
			}
			m.Set(col, val)
		}
		raw, err := m.MarshalJSON()
		if err != nil {
			return Preview{}, err
		}
		items = append(items, raw)
	}

	return Preview{
		Kind:      KindTabular,
		Columns:   headers,
		Items:     items,
		ItemCount: len(items),
		Truncated: truncated,
	}, nil
}

func parseCSV(data []byte) ([]string, [][]string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	all, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read csv: %w", err)
	}
	if len(all) < 1 {
		return nil, nil, fmt.Errorf("csv file is empty")
	}
	return all[0], all[1:], nil
}

func parseExcel(data []byte) ([]string, [][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse excel: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) < 1 {
		return nil, nil, fmt.Errorf("excel file is empty")
	}
	return rows[0], rows[1:], nil
}

func jsonPreview(filename string, data []byte, maxItems int) (Preview, error) {
	if strings.HasSuffix(strings.ToLower(filename), ".jsonl") {
		return jsonlPreview(data, maxItems)
	}

	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err == nil {
		truncated := len(arr) > maxItems
		if truncated {
			arr = arr[:maxItems]
		}
		return Preview{Kind: KindJSON, Items: arr, ItemCount: len(arr), Truncated: truncated}, nil
	}

	// not an array; must at least be a valid JSON document
	var single json.RawMessage
	if err := json.Unmarshal(data, &single); err != nil {
		return Preview{}, fmt.Errorf("invalid json: %w", err)
	}
	return Preview{Kind: KindJSON, Items: []json.RawMessage{single}, ItemCount: 1}, nil
}

func jsonlPreview(data []byte, maxItems int) (Preview, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var items []json.RawMessage
	truncated := false
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if len(items) >= maxItems {
			truncated = true
			break
		}
		var raw json.RawMessage
		if err := json.Unmarshal(line, &raw); err != nil {
			return Preview{}, fmt.Errorf("invalid jsonl line %d: %w", len(items)+1, err)
		}
		items = append(items, append(json.RawMessage(nil), raw...))
	}
	if err := scanner.Err(); err != nil {
		return Preview{}, err
	}
	if items == nil {
		items = []json.RawMessage{}
	}
	return Preview{Kind: KindJSON, Items: items, ItemCount: len(items), Truncated: truncated}, nil
}

func textPreview(data []byte, maxItems int) Preview {
	lines := strings.Split(string(data), "\n")
	truncated := len(lines) > maxItems
	if truncated {
		lines = lines[:maxItems]
	}

	items := make([]json.RawMessage, 0, len(lines))
	for _, line := range lines {
		raw, _ := json.Marshal(line)
		items = append(items, raw)
	}
	return Preview{Kind: KindText, Items: items, ItemCount: len(items), Truncated: truncated}
}
