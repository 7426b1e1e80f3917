package instructorscan

import "go.opentelemetry.io/otel"

var tracer = otel.Tracer("instructorscan/service")
