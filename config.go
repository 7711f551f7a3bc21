package lpvc

import (
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"github.com/spf13/cast"

	"github.com/longplay/lpvc/codec"
)

// CompressionLevel is the host's zstd level request.
type CompressionLevel int

// DefaultCompressionLevel asks for the codec's own default level. In generic
// option maps it may also be spelled "default".
const DefaultCompressionLevel CompressionLevel = -1

// Config holds the generic options a host supplies when opening an encoder.
type Config struct {
	// UsePalette enables palette coding.
	UsePalette bool `mapstructure:"usePalette"`
	// CompressionLevel is DefaultCompressionLevel or a level in
	// [1, codec.MaxCompressionLevel()].
	CompressionLevel CompressionLevel `mapstructure:"compressionLevel"`
	// WorkerCount is the codec's worker parallelism; values below 1 mean 1.
	WorkerCount int `mapstructure:"workerCount"`
	// GOPSize forces a key frame every GOPSize frames. 0 or less disables
	// forced key frames.
	GOPSize int `mapstructure:"gopSize"`
	// GOPResetOnKeyFrame restarts the GOP count on every key frame the codec
	// reports, not only on forced ones.
	GOPResetOnKeyFrame bool `mapstructure:"gopResetOnKeyFrame"`
}

// DefaultConfig returns the configuration used for options a host leaves out.
func DefaultConfig() Config {
	return Config{
		UsePalette:       true,
		CompressionLevel: DefaultCompressionLevel,
		WorkerCount:      1,
	}
}

// ParseConfig decodes a generic key/value option map on top of
// DefaultConfig. Keys match the field tags case-insensitively, ignoring '-'
// and '_', so "use-palette", "use_palette" and "usePalette" are equivalent.
// Values are coerced from strings and numbers where possible.
func ParseConfig(values map[string]any) (Config, error) {
	cfg := DefaultConfig()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &cfg,
		ErrorUnused: true,
		MatchName:   matchOptionName,
		DecodeHook:  coerceOption,
	})
	if err != nil {
		return Config{}, errors.Wrap(err, "cannot create option decoder")
	}
	if err := dec.Decode(values); err != nil {
		return Config{}, &Error{Kind: KindInvalidConfiguration, Op: "configure", Err: err}
	}
	return cfg, nil
}

func normalizeOptionName(s string) string {
	return strings.ToLower(strings.NewReplacer("-", "", "_", "").Replace(s))
}

func matchOptionName(mapKey, fieldName string) bool {
	return normalizeOptionName(mapKey) == normalizeOptionName(fieldName)
}

var compressionLevelType = reflect.TypeOf(CompressionLevel(0))

// coerceOption converts loosely typed option values to the field types.
func coerceOption(from, to reflect.Type, data any) (any, error) {
	switch {
	case to == compressionLevelType:
		if s, ok := data.(string); ok && strings.EqualFold(strings.TrimSpace(s), "default") {
			return DefaultCompressionLevel, nil
		}
		l, err := cast.ToIntE(data)
		if err != nil {
			return nil, errors.Wrap(err, "compression level")
		}
		return CompressionLevel(l), nil
	case to.Kind() == reflect.Int && from.Kind() != reflect.Int:
		return cast.ToIntE(data)
	case to.Kind() == reflect.Bool && from.Kind() != reflect.Bool:
		return cast.ToBoolE(data)
	}
	return data, nil
}

// BuildSettings derives the codec settings from cfg. It fails with an
// InvalidConfiguration error naming the accepted range when the compression
// level is out of range.
func BuildSettings(cfg Config) (codec.EncoderSettings, error) {
	settings := codec.EncoderSettings{
		UsePalette:      cfg.UsePalette,
		ZstdWorkerCount: max(1, cfg.WorkerCount),
	}

	if cfg.CompressionLevel != DefaultCompressionLevel {
		level := int(cfg.CompressionLevel)
		if level < 1 || level > codec.MaxCompressionLevel() {
			return codec.EncoderSettings{}, &Error{
				Kind: KindInvalidConfiguration,
				Op:   "configure",
				Err:  errors.Errorf("compression level must be in range 1-%d", codec.MaxCompressionLevel()),
			}
		}
		settings.ZstdCompressionLevel = &level
	}
	return settings, nil
}
