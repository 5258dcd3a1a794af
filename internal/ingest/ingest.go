// Package ingest imports masterlist files: catalogue CSVs whose rows become
// master tags that concrete tags can later be typed against.
package ingest

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/grovekit/grove/pkg/tagstore"
)

// Importer parses masterlist files into the tag store.
type Importer struct {
	store *tagstore.Client
}

// NewImporter creates an importer backed by the given store.
func NewImporter(store *tagstore.Client) *Importer {
	return &Importer{store: store}
}

// Ingest parses a CSV masterlist and stores it with all of its tags in one
// transaction. The header row must contain a "tag" column naming each entry;
// a "type" column is optional and any further columns are packed into the
// master tag's data payload as a JSON object. Duplicate tag names within one
// file are a conflict: the whole ingest is rejected, nothing is written.
func (im *Importer) Ingest(ctx context.Context, fileName string, r io.Reader) (*tagstore.Masterlist, []*tagstore.MasterTag, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read header of %s: %w", fileName, err)
	}

	tagCol, typeCol := -1, -1
	extraCols := make(map[int]string)
	for i, col := range header {
		name := strings.ToLower(strings.TrimSpace(col))
		switch name {
		case "tag", "tags":
			tagCol = i
		case "type":
			typeCol = i
		default:
			extraCols[i] = name
		}
	}
	if tagCol < 0 {
		return nil, nil, fmt.Errorf("%s has no tag column: %w", fileName, tagstore.ErrConflict)
	}

	list := &tagstore.Masterlist{
		ID:          tagstore.NewID(),
		FileName:    fileName,
		CreatedAtMs: time.Now().UnixMilli(),
	}
	if err := list.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid masterlist: %w", err)
	}

	var tags []*tagstore.MasterTag
	seen := make(map[string]int)
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read %s line %d: %w", fileName, line, err)
		}

		name := strings.TrimSpace(row[tagCol])
		if name == "" {
			continue
		}
		if prev, dup := seen[name]; dup {
			return nil, nil, fmt.Errorf("%s line %d: tag %q already defined on line %d: %w",
				fileName, line, name, prev, tagstore.ErrConflict)
		}
		seen[name] = line

		mt := &tagstore.MasterTag{
			ID:     tagstore.NewID(),
			FileID: list.ID,
			Name:   name,
		}
		if typeCol >= 0 && typeCol < len(row) {
			mt.Type = strings.TrimSpace(row[typeCol])
		}
		if mt.Type == "" {
			mt.Type = "default"
		}
		if data := packExtras(row, extraCols); data != "" {
			mt.Data = data
		}
		if err := mt.Validate(); err != nil {
			return nil, nil, fmt.Errorf("%s line %d: %w", fileName, line, err)
		}
		tags = append(tags, mt)
	}

	ws := im.store.NewWriteSet()
	ws.PutMasterlist(list)
	for _, mt := range tags {
		ws.PutMasterTag(mt)
	}
	if err := ws.Apply(ctx); err != nil {
		return nil, nil, err
	}
	return list, tags, nil
}

// packExtras serializes the row's non-reserved columns into a JSON object.
// Returns "" when every extra cell is empty.
func packExtras(row []string, extraCols map[int]string) string {
	extras := make(map[string]string)
	for i, name := range extraCols {
		if i >= len(row) {
			continue
		}
		if cell := strings.TrimSpace(row[i]); cell != "" {
			extras[name] = cell
		}
	}
	if len(extras) == 0 {
		return ""
	}
	data, err := json.Marshal(extras)
	if err != nil {
		return ""
	}
	return string(data)
}
