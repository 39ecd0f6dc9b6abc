package config

const (
	defaultTranscriptionBackend  = "auto"
	defaultWhisperModel          = "medium"
	defaultWhisperDevice         = "cpu"
	defaultWhisperCommand        = "whisper"
	defaultWhisperXModel         = "large-v3"
	defaultBeamSize              = 5
	defaultOpenAIModel           = "whisper-1"
	defaultTranscribeTimeout     = 3600
	defaultPythonBinary          = "python3"
	defaultSynthesisDevice       = "cpu"
	defaultSynthesisLanguage     = "en"
	defaultExaggeration          = 0.5
	defaultCFGWeight             = 0.5
	defaultSynthesisTimeout      = 180
	defaultSynthesisMaxAttempts  = 2
	defaultFallbackToneSeconds   = 1.0
	defaultFallbackToneHz        = 440.0
	defaultMaxSegmentSeconds     = 15.0
	defaultMinTargetSeconds      = 0.001
	defaultSampleRate            = 24000
	defaultTailPaddingMS         = 500
	defaultFadeMS                = 10
	defaultMinGapMS              = 250
	defaultLoudnessI             = -16.0
	defaultLoudnessTP            = -1.5
	defaultLoudnessLRA           = 11.0
	defaultCompressorThresholdDB = -18.0
	defaultCompressorRatio       = 2.0
	defaultNoiseFloorDB          = -25.0
	defaultPeakDBFS              = -3.0
	defaultSilenceThresholdDB    = -35.0
	defaultMinSilenceMS          = 700
	defaultKeepSilenceMS         = 200
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults. Python, device
// and credentials stay empty so normalize can fill them from the environment.
func Default() Config {
	return Config{
		Transcription: Transcription{
			Backend:        defaultTranscriptionBackend,
			Model:          defaultWhisperModel,
			Device:         defaultWhisperDevice,
			BeamSize:       defaultBeamSize,
			WhisperCommand: defaultWhisperCommand,
			WhisperXModel:  defaultWhisperXModel,
			OpenAIModel:    defaultOpenAIModel,
			TimeoutSeconds: defaultTranscribeTimeout,
		},
		Synthesis: Synthesis{
			Language:            defaultSynthesisLanguage,
			Exaggeration:        defaultExaggeration,
			CFGWeight:           defaultCFGWeight,
			TimeoutSeconds:      defaultSynthesisTimeout,
			MaxAttempts:         defaultSynthesisMaxAttempts,
			FallbackToneSeconds: defaultFallbackToneSeconds,
			FallbackToneHz:      defaultFallbackToneHz,
		},
		Alignment: Alignment{
			MaxSegmentSeconds: defaultMaxSegmentSeconds,
			MinTargetSeconds:  defaultMinTargetSeconds,
		},
		Assembly: Assembly{
			SampleRate:            defaultSampleRate,
			TailPaddingMS:         defaultTailPaddingMS,
			FadeMS:                defaultFadeMS,
			MinGapMS:              defaultMinGapMS,
			LoudnessI:             defaultLoudnessI,
			LoudnessTP:            defaultLoudnessTP,
			LoudnessLRA:           defaultLoudnessLRA,
			CompressorThresholdDB: defaultCompressorThresholdDB,
			CompressorRatio:       defaultCompressorRatio,
		},
		Preparation: Preparation{
			Denoise:            true,
			NoiseFloorDB:       defaultNoiseFloorDB,
			PeakDBFS:           defaultPeakDBFS,
			SilenceThresholdDB: defaultSilenceThresholdDB,
			MinSilenceMS:       defaultMinSilenceMS,
			KeepSilenceMS:      defaultKeepSilenceMS,
		},
		Cache: Cache{
			Enabled: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
