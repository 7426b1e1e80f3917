package scraper

import "go.opentelemetry.io/otel"

var tracer = otel.Tracer("instructorscan/scraper")
