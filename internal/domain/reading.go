package domain

// MediaType distinguishes the two kinds of binary capture.
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaAudio MediaType = "audio"
)

// ContentType is the MIME type the collector expects for the blob.
func (m MediaType) ContentType() string {
	switch m {
	case MediaImage:
		return "image/jpeg"
	case MediaAudio:
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}

// Extension is the file extension used for captured files.
func (m MediaType) Extension() string {
	switch m {
	case MediaImage:
		return ".jpg"
	case MediaAudio:
		return ".wav"
	default:
		return ".bin"
	}
}

// Reading is the payload of a completed measurement.
// The set of implementations is closed; see the types below.
type Reading interface {
	// TimeseriesData returns the "data" object of a timeseries record.
	TimeseriesData() map[string]any
	isReading()
}

// GasReading is an SCD41 single-shot measurement.
type GasReading struct {
	CO2         float64
	Humidity    float64
	Temperature float64
}

// HumidityTemperatureReading is an HTU2X measurement.
type HumidityTemperatureReading struct {
	Humidity    float64
	Temperature float64
}

// LightReading is a TSL2591 measurement in lux.
type LightReading struct {
	Lux float64
}

// MotionReading is the PIR input level.
type MotionReading struct {
	Motion bool
}

// MediaReading references a captured file on local disk. The path is opaque
// to everything except the upload pipeline.
type MediaReading struct {
	Path      string
	MediaType MediaType
}

// AssetReading is the second-phase payload of a media capture: the remote
// location the blob was stored at.
type AssetReading struct {
	Location  string
	MediaType MediaType
}

func (GasReading) isReading()                 {}
func (HumidityTemperatureReading) isReading() {}
func (LightReading) isReading()               {}
func (MotionReading) isReading()              {}
func (MediaReading) isReading()               {}
func (AssetReading) isReading()               {}

func (r GasReading) TimeseriesData() map[string]any {
	return map[string]any{
		"co2":         r.CO2,
		"humidity":    r.Humidity,
		"temperature": r.Temperature,
	}
}

func (r HumidityTemperatureReading) TimeseriesData() map[string]any {
	return map[string]any{
		"humidity":    r.Humidity,
		"temperature": r.Temperature,
	}
}

func (r LightReading) TimeseriesData() map[string]any {
	return map[string]any{"brightness": r.Lux}
}

func (r MotionReading) TimeseriesData() map[string]any {
	return map[string]any{"motion": r.Motion}
}

func (r MediaReading) TimeseriesData() map[string]any {
	return map[string]any{"path": r.Path}
}

func (r AssetReading) TimeseriesData() map[string]any {
	switch r.MediaType {
	case MediaAudio:
		return map[string]any{"audioUrl": r.Location}
	default:
		return map[string]any{"imageUrl": r.Location}
	}
}

// MediaTypeOf returns the media type produced by a class, or "" for scalar classes.
func MediaTypeOf(c SensorClass) MediaType {
	switch c {
	case ClassCamera:
		return MediaImage
	case ClassMicrophone:
		return MediaAudio
	default:
		return ""
	}
}
