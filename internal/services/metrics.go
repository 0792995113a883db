package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "peerlink_uploads_total",
		Help: "Completed uploads by uploader kind",
	}, []string{"uploader"})

	uploadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "peerlink_upload_bytes_total",
		Help: "Total bytes written to the object store",
	})

	downloadLinksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "peerlink_download_links_total",
		Help: "Presigned download links issued",
	})

	deletesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "peerlink_deletes_total",
		Help: "Files deleted by their owners",
	})

	shareCodeCollisions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "peerlink_sharecode_collisions_total",
		Help: "Generated share codes that were already taken",
	})

	shareCodeFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "peerlink_sharecode_fallbacks_total",
		Help: "Allocations that fell back to the long code format",
	})

	shareCodeInsertConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "peerlink_sharecode_insert_conflicts_total",
		Help: "Inserts rejected by the share code unique constraint",
	})
)
