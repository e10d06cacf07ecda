package variant

// Variant names used as record fields and storage key suffixes.
const (
	NameOriginal  = "original"
	NameDisplay   = "display"
	NameThumbnail = "thumbnail"
)

// Profile holds the operational encoder configuration.
type Profile struct {
	DisplayMaxSize     int
	DisplayFormat      Format
	DisplayQuality     int
	BulkDisplayFormat  Format
	BulkDisplayQuality int
	ThumbnailMaxSize   int
	ThumbnailFormat    Format
	ThumbnailQuality   int
}

// DefaultProfile mirrors the production settings: lossless display capped at
// 2400px and 300px lossy thumbnails.
func DefaultProfile() Profile {
	return Profile{
		DisplayMaxSize:     2400,
		DisplayFormat:      FormatPNG,
		BulkDisplayFormat:  FormatJPEG,
		BulkDisplayQuality: 85,
		ThumbnailMaxSize:   300,
		ThumbnailFormat:    FormatJPEG,
		ThumbnailQuality:   70,
	}
}

func (p Profile) original() Spec {
	return Spec{Name: NameOriginal, Format: FormatPNG, AutoOrient: true}
}

func (p Profile) display(format Format, quality int) Spec {
	return Spec{
		Name:       NameDisplay,
		MaxWidth:   p.DisplayMaxSize,
		MaxHeight:  p.DisplayMaxSize,
		Format:     format,
		Quality:    quality,
		AutoOrient: true,
	}
}

func (p Profile) thumbnail() Spec {
	return Spec{
		Name:       NameThumbnail,
		MaxWidth:   p.ThumbnailMaxSize,
		MaxHeight:  p.ThumbnailMaxSize,
		Format:     p.ThumbnailFormat,
		Quality:    p.ThumbnailQuality,
		AutoOrient: true,
	}
}

// FullPipeline produces original, display and thumbnail in one pass.
func (p Profile) FullPipeline() []Spec {
	return []Spec{p.original(), p.display(p.DisplayFormat, p.DisplayQuality), p.thumbnail()}
}

// Deferred produces original and display; the thumbnail is left to the
// backfill worker.
func (p Profile) Deferred() []Spec {
	return []Spec{p.original(), p.display(p.DisplayFormat, p.DisplayQuality)}
}

// Bulk keeps the uploaded bytes as the original and adds a lossy display copy.
func (p Profile) Bulk() []Spec {
	return []Spec{
		{Name: NameOriginal, Format: FormatSource},
		p.display(p.BulkDisplayFormat, p.BulkDisplayQuality),
	}
}

// ThumbnailOnly is used by the backfill worker.
func (p Profile) ThumbnailOnly() []Spec {
	return []Spec{p.thumbnail()}
}
