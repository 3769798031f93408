package constants

// Normalizer source tags describing how an artifact was produced.
const (
	SourceTagEmail         = "email_passthrough"
	SourceTagPDF           = "pdf_passthrough"
	SourceTagHEICConverted = "heic_converted"
	SourceTagHEICPassthru  = "heic_passthrough"
	SourceTagEXIFStripped  = "exif_stripped"
	SourceTagImagePDF      = "image_pdf"
	SourceTagImagePassthru = "image_passthrough"
	SourceTagProcessed     = "processed"
)

// Extraction methods recorded on ExtractionResult metadata.
const (
	MethodAI      = "ai"
	MethodPattern = "pattern"
	MethodCached  = "cached"
)

// Intake source channels.
const (
	SourceChannelEmail  = "email"
	SourceChannelUpload = "upload"
	SourceChannelBatch  = "batch"
)
