package archive

import "errors"

var (
	// ErrUnsupportedMediaType is returned when no registered codec handles a file.
	ErrUnsupportedMediaType = errors.New("unsupported media type")

	// ErrArchiveRead is returned when an archive or one of its entries cannot be read.
	ErrArchiveRead = errors.New("archive read error")

	// ErrEntryNotFound is returned when a named entry does not exist in the archive.
	ErrEntryNotFound = errors.New("archive entry not found")

	// ErrWriteBack is returned when saving into an archive failed. The original
	// archive is left untouched whenever this error is returned.
	ErrWriteBack = errors.New("archive write-back failed")

	// ErrReadOnlyFormat is wrapped by ErrWriteBack for formats that cannot be rewritten.
	ErrReadOnlyFormat = errors.New("archive format is read-only")

	// ErrClosed is returned by operations on a closed or never opened iterator.
	ErrClosed = errors.New("archive iterator is closed")
)
