package designs

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"sort"
	"strings"
	"time"

	"flowcanvas/internal/common"
	"flowcanvas/pkg/errors"
)

// Export formats.
const (
	FormatJSON = "json"
	FormatXML  = "xml"
)

// exportEnvelope is the on-disk JSON shape. The format version guards future
// layout changes.
type exportEnvelope struct {
	FormatVersion int          `json:"format_version"`
	ExportedAt    time.Time    `json:"exported_at"`
	Design        exportDesign `json:"design"`
}

type exportDesign struct {
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	Category     string         `json:"category,omitempty"`
	Nodes        []Node         `json:"nodes"`
	Connections  []Connection   `json:"connections"`
	CanvasConfig map[string]any `json:"canvas_config"`
}

const exportFormatVersion = 1

// xmlEntry holds one config key with its value JSON-encoded, so maps and
// numbers survive the XML round trip without type loss.
type xmlEntry struct {
	Key   string `xml:"key,attr"`
	Value string `xml:",chardata"`
}

type xmlNode struct {
	ID     string     `xml:"id,attr"`
	Type   string     `xml:"type,attr"`
	Name   string     `xml:"name"`
	X      float64    `xml:"position>x"`
	Y      float64    `xml:"position>y"`
	Config []xmlEntry `xml:"config>entry"`
}

type xmlConnection struct {
	ID         string `xml:"id,attr"`
	SourceID   string `xml:"source"`
	TargetID   string `xml:"target"`
	SourcePort string `xml:"source_port,omitempty"`
	TargetPort string `xml:"target_port,omitempty"`
	Type       string `xml:"type,omitempty"`
	Label      string `xml:"label,omitempty"`
}

type xmlDesign struct {
	XMLName       xml.Name        `xml:"design"`
	FormatVersion int             `xml:"format_version,attr"`
	Name          string          `xml:"name"`
	Description   string          `xml:"description"`
	Category      string          `xml:"category,omitempty"`
	Canvas        []xmlEntry      `xml:"canvas>entry"`
	Nodes         []xmlNode       `xml:"nodes>node"`
	Connections   []xmlConnection `xml:"connections>connection"`
}

// ImportedDesign is the parsed, not-yet-validated content of an import
// payload.
type ImportedDesign struct {
	Name         string
	Description  string
	Category     string
	Nodes        []Node
	Connections  []Connection
	CanvasConfig map[string]any
}

// EncodeDesign serializes a design's metadata and live graph in the chosen
// format. The output round-trips losslessly through ParseImport.
func EncodeDesign(design *Design, format string) ([]byte, error) {
	nodes, connections, canvas := design.CloneGraph()
	content := exportDesign{
		Name:         design.Name,
		Description:  design.Description,
		Category:     design.Category,
		Nodes:        nodes,
		Connections:  connections,
		CanvasConfig: canvas,
	}
	if content.Nodes == nil {
		content.Nodes = []Node{}
	}
	if content.Connections == nil {
		content.Connections = []Connection{}
	}
	if content.CanvasConfig == nil {
		content.CanvasConfig = map[string]any{}
	}

	switch format {
	case FormatJSON, "":
		envelope := exportEnvelope{
			FormatVersion: exportFormatVersion,
			ExportedAt:    time.Now().UTC(),
			Design:        content,
		}
		return json.MarshalIndent(envelope, "", "  ")
	case FormatXML:
		return encodeXML(&content)
	default:
		return nil, errors.ValidationError(errors.CodeInvalidInput,
			"unsupported export format: "+format)
	}
}

// ContentTypeFor returns the MIME type of an export format.
func ContentTypeFor(format string) string {
	if format == FormatXML {
		return common.ContentTypeXML
	}
	return common.ContentTypeJSON
}

func encodeXML(content *exportDesign) ([]byte, error) {
	doc := xmlDesign{
		FormatVersion: exportFormatVersion,
		Name:          content.Name,
		Description:   content.Description,
		Category:      content.Category,
	}

	var err error
	if doc.Canvas, err = mapToEntries(content.CanvasConfig); err != nil {
		return nil, err
	}
	for i := range content.Nodes {
		node := &content.Nodes[i]
		entries, err := mapToEntries(node.Config)
		if err != nil {
			return nil, err
		}
		doc.Nodes = append(doc.Nodes, xmlNode{
			ID:     node.ID,
			Type:   node.Type,
			Name:   node.Name,
			X:      node.Position.X,
			Y:      node.Position.Y,
			Config: entries,
		})
	}
	for i := range content.Connections {
		conn := &content.Connections[i]
		doc.Connections = append(doc.Connections, xmlConnection{
			ID:         conn.ID,
			SourceID:   conn.SourceID,
			TargetID:   conn.TargetID,
			SourcePort: conn.SourcePort,
			TargetPort: conn.TargetPort,
			Type:       conn.Type,
			Label:      conn.Label,
		})
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, errors.InternalError("failed to encode design as XML", err)
	}
	return append([]byte(xml.Header), out...), nil
}

func mapToEntries(m map[string]any) ([]xmlEntry, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	entries := make([]xmlEntry, 0, len(m))
	for _, k := range keys {
		encoded, err := json.Marshal(m[k])
		if err != nil {
			return nil, errors.InternalError("failed to encode config value", err)
		}
		entries = append(entries, xmlEntry{Key: k, Value: string(encoded)})
	}
	return entries, nil
}

func entriesToMap(entries []xmlEntry) (map[string]any, error) {
	m := make(map[string]any, len(entries))
	for _, entry := range entries {
		var value any
		if err := json.Unmarshal([]byte(entry.Value), &value); err != nil {
			return nil, errors.ValidationError(errors.CodeInvalidInput,
				"malformed config value for key "+entry.Key)
		}
		m[entry.Key] = value
	}
	return m, nil
}

// ParseImport decodes an export payload. An empty format sniffs the content:
// a leading '<' means XML, anything else is treated as JSON.
func ParseImport(data []byte, format string) (*ImportedDesign, error) {
	if len(data) == 0 {
		return nil, errors.ValidationError(errors.CodeMissingField, "import payload is empty")
	}
	if len(data) > common.MaxImportSize {
		return nil, errors.ValidationError(errors.CodeInvalidInput, "import payload too large")
	}

	if format == "" {
		trimmed := strings.TrimSpace(string(data[:min(len(data), 64)]))
		if strings.HasPrefix(trimmed, "<") {
			format = FormatXML
		} else {
			format = FormatJSON
		}
	}

	switch format {
	case FormatJSON:
		return parseJSONImport(data)
	case FormatXML:
		return parseXMLImport(data)
	default:
		return nil, errors.ValidationError(errors.CodeInvalidInput,
			"unsupported import format: "+format)
	}
}

func parseJSONImport(data []byte) (*ImportedDesign, error) {
	var envelope exportEnvelope
	decoder := json.NewDecoder(bytes.NewReader(data))
	if err := decoder.Decode(&envelope); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, errors.CodeInvalidInput,
			"malformed JSON import payload")
	}
	content := envelope.Design
	if content.Name == "" {
		return nil, errors.ValidationError(errors.CodeMissingField, "import payload has no design name")
	}
	return &ImportedDesign{
		Name:         content.Name,
		Description:  content.Description,
		Category:     content.Category,
		Nodes:        content.Nodes,
		Connections:  content.Connections,
		CanvasConfig: content.CanvasConfig,
	}, nil
}

func parseXMLImport(data []byte) (*ImportedDesign, error) {
	var doc xmlDesign
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, errors.CodeInvalidInput,
			"malformed XML import payload")
	}
	if doc.Name == "" {
		return nil, errors.ValidationError(errors.CodeMissingField, "import payload has no design name")
	}

	imported := &ImportedDesign{
		Name:        doc.Name,
		Description: doc.Description,
		Category:    doc.Category,
	}

	var err error
	if imported.CanvasConfig, err = entriesToMap(doc.Canvas); err != nil {
		return nil, err
	}
	for _, xn := range doc.Nodes {
		config, err := entriesToMap(xn.Config)
		if err != nil {
			return nil, err
		}
		imported.Nodes = append(imported.Nodes, Node{
			ID:       xn.ID,
			Type:     xn.Type,
			Name:     xn.Name,
			Position: Position{X: xn.X, Y: xn.Y},
			Config:   config,
		})
	}
	for _, xc := range doc.Connections {
		imported.Connections = append(imported.Connections, Connection{
			ID:         xc.ID,
			SourceID:   xc.SourceID,
			TargetID:   xc.TargetID,
			SourcePort: xc.SourcePort,
			TargetPort: xc.TargetPort,
			Type:       xc.Type,
			Label:      xc.Label,
		})
	}
	return imported, nil
}

// ExportDesign serializes a stored design.
func (s *Service) ExportDesign(ctx context.Context, designID, format string) ([]byte, string, error) {
	design, err := s.getDesign(ctx, designID)
	if err != nil {
		return nil, "", err
	}
	data, err := EncodeDesign(design, format)
	if err != nil {
		return nil, "", err
	}
	return data, ContentTypeFor(format), nil
}

// ImportDesign parses a payload, validates the graph with the full rule set,
// and creates a new design with a fresh id. Nothing is created when
// validation fails; the accumulated violations come back to the caller.
func (s *Service) ImportDesign(ctx context.Context, data []byte, format, createdBy string) (*Design, error) {
	imported, err := ParseImport(data, format)
	if err != nil {
		return nil, err
	}

	result := s.validator.ValidateGraph(imported.Nodes, imported.Connections)
	if !result.Valid {
		verrs := errors.NewValidationErrors()
		for _, violation := range result.Errors {
			verrs.Add("%s", violation)
		}
		return nil, verrs.AsError()
	}

	design := NewDesign(imported.Name, imported.Description, imported.Category, createdBy)
	seed := &Design{
		Nodes:        imported.Nodes,
		Connections:  imported.Connections,
		CanvasConfig: imported.CanvasConfig,
	}
	design.Nodes, design.Connections, design.CanvasConfig = seed.CloneGraph()
	if design.CanvasConfig == nil {
		design.CanvasConfig = map[string]any{}
	}
	design.RecomputeCounts()

	if err := s.repo.CreateDesign(ctx, design); err != nil {
		s.metrics.RecordDesignOperation("import", "error")
		return nil, err
	}

	s.metrics.RecordDesignOperation("import", "success")
	s.logger.InfoContext(ctx, "Design imported", "design_id", design.ID, "name", design.Name)
	s.publishDesign(ctx, "design.created", design)
	return design, nil
}
