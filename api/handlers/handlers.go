package handlers

import (
	"github.com/docuvault/docscan/internal/service/scan"
	"github.com/docuvault/docscan/pkg/logger"
)

type Handlers struct {
	Scan     *ScanHandler
	Document *DocumentHandler
}

func NewHandlers(
	scanService scan.Service,
	logger logger.Logger,
) *Handlers {
	return &Handlers{
		Scan:     NewScanHandler(scanService, logger),
		Document: NewDocumentHandler(scanService, logger),
	}
}
