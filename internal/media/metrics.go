package media

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mediaIngestedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opname_media_ingested_total",
		Help: "Images written to the media root, by placement.",
	}, []string{"placement"})

	mediaRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opname_media_rejected_total",
		Help: "Uploads rejected before writing, by reason.",
	}, []string{"reason"})

	mediaCompressedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "opname_media_compressed_total",
		Help: "Images stored in recompressed form.",
	})

	mediaCompressFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "opname_media_compress_failed_total",
		Help: "Images whose recompression failed and were stored as uploaded.",
	})
)
