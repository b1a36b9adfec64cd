package notice

import "encoding/json"

// Alignment is the horizontal alignment of a text block.
type Alignment string

// Text block alignments.
const (
	AlignLeading Alignment = "leading" // Default for paragraphs and loose text
	AlignCenter  Alignment = "center"  // Paragraphs styled text-align: center
)

// BlockKind discriminates the Block variants.
type BlockKind string

// Block kinds, also used as the JSON "type" value.
const (
	KindText  BlockKind = "text"
	KindImage BlockKind = "image"
	KindTable BlockKind = "table"
)

// Block is one typed unit of detail page content.
// The set of implementations is closed: TextBlock, ImageBlock and TableBlock.
type Block interface {
	Kind() BlockKind
	block()
}

// TextBlock is a run of paragraph text.
type TextBlock struct {
	Content   string
	Alignment Alignment
}

// ImageBlock is an inline image.
type ImageBlock struct {
	URL string
}

// TableBlock is a table with a header row and data rows.
type TableBlock struct {
	Headers []string
	Rows    [][]string
}

// Kind reports the variant of the block.
func (TextBlock) Kind() BlockKind  { return KindText }
func (ImageBlock) Kind() BlockKind { return KindImage }
func (TableBlock) Kind() BlockKind { return KindTable }

func (TextBlock) block()  {}
func (ImageBlock) block() {}
func (TableBlock) block() {}

// MarshalJSON encodes the block with a "type" discriminator.
func (b TextBlock) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type      BlockKind `json:"type"`
		Content   string    `json:"content"`
		Alignment Alignment `json:"alignment"`
	}{KindText, b.Content, b.Alignment})
}

// MarshalJSON encodes the block with a "type" discriminator.
func (b ImageBlock) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type BlockKind `json:"type"`
		URL  string    `json:"url"`
	}{KindImage, b.URL})
}

// MarshalJSON encodes the block with a "type" discriminator.
func (b TableBlock) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    BlockKind  `json:"type"`
		Headers []string   `json:"headers"`
		Rows    [][]string `json:"rows"`
	}{KindTable, b.Headers, b.Rows})
}

// AttachmentKind is inferred from the class marker on an attachment link.
type AttachmentKind string

// Attachment kinds.
const (
	AttachmentDocument AttachmentKind = "document"
	AttachmentPDF      AttachmentKind = "pdf"
	AttachmentOther    AttachmentKind = "other"
)

// Attachment is a downloadable file linked from a detail page.
type Attachment struct {
	Name string         `json:"name"`
	URL  string         `json:"url"`
	Size string         `json:"size,omitempty"`
	Kind AttachmentKind `json:"kind"`
}

// Meta holds the labeled metadata of a detail page.
type Meta struct {
	Author string `json:"author"`
	Date   string `json:"date"`
	Views  string `json:"views"`
}

// Detail is the assembled content of one notice.
type Detail struct {
	ArticleID   string       `json:"article_id"`
	URL         string       `json:"url"`
	Meta        Meta         `json:"meta"`
	Blocks      []Block      `json:"blocks"`
	Attachments []Attachment `json:"attachments"`
}
