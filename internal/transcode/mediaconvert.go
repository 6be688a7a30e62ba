package transcode

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/mediaconvert"
	mctypes "github.com/aws/aws-sdk-go-v2/service/mediaconvert/types"
	"github.com/rs/zerolog/log"
)

// Fixed HLS target profile. One rendition: 640x360 H.264 at QVBR with
// AAC stereo audio, 10-second segments.
const (
	outputWidth     = 640
	outputHeight    = 360
	maxVideoBitrate = 5_000_000
	audioBitrate    = 96_000
	audioSampleRate = 48_000
	segmentSeconds  = 10
)

// MediaConvertService implements JobService on AWS Elemental MediaConvert.
type MediaConvertService struct {
	client   *mediaconvert.Client
	roleARN  string
	queueARN string
}

var _ JobService = (*MediaConvertService)(nil)

// NewMediaConvertService creates a MediaConvertService. roleARN is the
// IAM role MediaConvert assumes for S3 access; queueARN selects the job
// queue. An optional account endpoint can be set on the client options.
func NewMediaConvertService(cfg aws.Config, roleARN, queueARN, endpoint string) *MediaConvertService {
	client := mediaconvert.NewFromConfig(cfg, func(o *mediaconvert.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return &MediaConvertService{
		client:   client,
		roleARN:  roleARN,
		queueARN: queueARN,
	}
}

func (s *MediaConvertService) SubmitJob(ctx context.Context, spec JobSpec) (string, error) {
	input := fmt.Sprintf("s3://%s/%s", spec.SourceBucket, spec.SourceKey)
	destination := destinationURI(spec.DestBucket, spec.DestPrefix, spec.TrainingID)

	result, err := s.client.CreateJob(ctx, &mediaconvert.CreateJobInput{
		Role:     aws.String(s.roleARN),
		Queue:    aws.String(s.queueARN),
		Settings: hlsJobSettings(input, destination),
		UserMetadata: map[string]string{
			"trainingId": spec.TrainingID,
		},
		StatusUpdateInterval: mctypes.StatusUpdateIntervalSeconds60,
	})
	if err != nil {
		return "", fmt.Errorf("CreateJob for training %s: %w", spec.TrainingID, err)
	}

	jobID := aws.ToString(result.Job.Id)
	log.Info().
		Str("trainingId", spec.TrainingID).
		Str("jobId", jobID).
		Str("input", input).
		Str("destination", destination).
		Msg("MediaConvert job submitted")
	return jobID, nil
}

func (s *MediaConvertService) PollJob(ctx context.Context, jobID string) (JobStatus, error) {
	result, err := s.client.GetJob(ctx, &mediaconvert.GetJobInput{
		Id: aws.String(jobID),
	})
	if err != nil {
		return JobStatus{}, fmt.Errorf("GetJob %s: %w", jobID, err)
	}

	job := result.Job
	switch job.Status {
	case mctypes.JobStatusComplete:
		return JobStatus{State: StateComplete, Done: true}, nil
	case mctypes.JobStatusError:
		detail := aws.ToString(job.ErrorMessage)
		if detail == "" {
			detail = fmt.Sprintf("MediaConvert error code %d", aws.ToInt32(job.ErrorCode))
		}
		return JobStatus{State: StateError, Done: true, Err: detail}, nil
	case mctypes.JobStatusCanceled:
		return JobStatus{State: StateCanceled, Done: true, Err: "job canceled"}, nil
	case mctypes.JobStatusProgressing:
		return JobStatus{State: StateProgressing}, nil
	default:
		return JobStatus{State: StateSubmitted}, nil
	}
}

// hlsJobSettings builds the single-rendition HLS job settings used for
// every training video.
func hlsJobSettings(inputURI, destinationURI string) *mctypes.JobSettings {
	return &mctypes.JobSettings{
		TimecodeConfig: &mctypes.TimecodeConfig{
			Source: mctypes.TimecodeSourceZerobased,
		},
		FollowSource: aws.Int32(1),
		Inputs: []mctypes.Input{
			{
				FileInput:      aws.String(inputURI),
				TimecodeSource: mctypes.InputTimecodeSourceZerobased,
				VideoSelector:  &mctypes.VideoSelector{},
				AudioSelectors: map[string]mctypes.AudioSelector{
					"Audio Selector 1": {
						DefaultSelection: mctypes.AudioDefaultSelectionDefault,
					},
				},
			},
		},
		OutputGroups: []mctypes.OutputGroup{
			{
				Name: aws.String("Apple HLS"),
				OutputGroupSettings: &mctypes.OutputGroupSettings{
					Type: mctypes.OutputGroupTypeHlsGroupSettings,
					HlsGroupSettings: &mctypes.HlsGroupSettings{
						Destination:      aws.String(destinationURI),
						SegmentLength:    aws.Int32(segmentSeconds),
						MinSegmentLength: aws.Int32(0),
					},
				},
				Outputs: []mctypes.Output{
					{
						ContainerSettings: &mctypes.ContainerSettings{
							Container:    mctypes.ContainerTypeM3u8,
							M3u8Settings: &mctypes.M3u8Settings{},
						},
						VideoDescription: &mctypes.VideoDescription{
							Width:  aws.Int32(outputWidth),
							Height: aws.Int32(outputHeight),
							CodecSettings: &mctypes.VideoCodecSettings{
								Codec: mctypes.VideoCodecH264,
								H264Settings: &mctypes.H264Settings{
									RateControlMode:      mctypes.H264RateControlModeQvbr,
									MaxBitrate:           aws.Int32(maxVideoBitrate),
									CodecProfile:         mctypes.H264CodecProfileMain,
									CodecLevel:           mctypes.H264CodecLevelLevel31,
									QualityTuningLevel:   mctypes.H264QualityTuningLevelSinglePass,
									SceneChangeDetect:    mctypes.H264SceneChangeDetectTransitionDetection,
									GopSize:              aws.Float64(90),
									GopSizeUnits:         mctypes.H264GopSizeUnitsFrames,
									FramerateControl:     mctypes.H264FramerateControlSpecified,
									FramerateNumerator:   aws.Int32(30000),
									FramerateDenominator: aws.Int32(1001),
								},
							},
						},
						AudioDescriptions: []mctypes.AudioDescription{
							{
								AudioSourceName: aws.String("Audio Selector 1"),
								CodecSettings: &mctypes.AudioCodecSettings{
									Codec: mctypes.AudioCodecAac,
									AacSettings: &mctypes.AacSettings{
										Bitrate:         aws.Int32(audioBitrate),
										SampleRate:      aws.Int32(audioSampleRate),
										RateControlMode: mctypes.AacRateControlModeCbr,
										CodecProfile:    mctypes.AacCodecProfileHev1,
										CodingMode:      mctypes.AacCodingModeCodingMode20,
									},
								},
							},
						},
					},
				},
			},
		},
	}
}
