// Package main provides vtadmin, the operator CLI for the video
// training service.
//
// It talks directly to the service's AWS resources using the same VT_*
// environment variables as the Lambdas:
//
//	vtadmin list                — list ready trainings
//	vtadmin show <trainingId>   — print one training and its reviews
//	vtadmin resubmit <trainingId> — clone a failed training and rerun it
//	vtadmin notify-test         — send a test operator notification
package main

import (
	"context"
	"fmt"
	"os"

	lambdasvc "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kkmtyyz/video-training-service/internal/config"
	"github.com/kkmtyyz/video-training-service/internal/dispatch"
	"github.com/kkmtyyz/video-training-service/internal/lambdaboot"
	"github.com/kkmtyyz/video-training-service/internal/logging"
	"github.com/kkmtyyz/video-training-service/internal/notify"
	"github.com/kkmtyyz/video-training-service/internal/store"
	"github.com/kkmtyyz/video-training-service/internal/workflow"
)

var limitFlag int

var rootCmd = &cobra.Command{
	Use:   "vtadmin",
	Short: "Operator tooling for the video training service",
	Long: `vtadmin inspects and repairs training records directly against the
service's DynamoDB tables. Configuration comes from the same VT_*
environment variables the Lambdas use (VT_TRAININGS_TABLE,
VT_USER_STATUS_TABLE, VT_REVIEWS_TABLE, VT_TRANSCODE_LAMBDA_ARN, ...).`,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List ready trainings",
	Run:   runList,
}

var showCmd = &cobra.Command{
	Use:   "show <trainingId>",
	Short: "Print one training record and its reviews",
	Args:  cobra.ExactArgs(1),
	Run:   runShow,
}

var resubmitCmd = &cobra.Command{
	Use:   "resubmit <trainingId>",
	Short: "Clone a failed training into a new record and rerun its workflow",
	Long: `Lifecycle transitions are forward-only, so a Failed record cannot be
rewound. resubmit recovers by creating a fresh training with the same
title, description, and source object, then dispatching its workflow.
The failed record is left in place for the audit trail.`,
	Args: cobra.ExactArgs(1),
	Run:  runResubmit,
}

var notifyTestCmd = &cobra.Command{
	Use:   "notify-test",
	Short: "Send a test notification to the operator topic",
	Run:   runNotifyTest,
}

func init() {
	listCmd.Flags().IntVar(&limitFlag, "limit", 0, "Maximum trainings to list (0 = store default)")
	rootCmd.AddCommand(listCmd, showCmd, resubmitCmd, notifyTestCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initStore builds the DynamoDB store from the environment.
func initStore() (*store.DynamoStore, config.Config) {
	logging.Init()
	cfg := config.FromEnv()
	awsCfg := lambdaboot.InitAWS()
	return lambdaboot.InitStore(awsCfg, cfg), cfg
}

func runList(cmd *cobra.Command, args []string) {
	st, _ := initStore()

	trainings, err := st.ListReadyTrainings(context.Background(), limitFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list trainings")
	}

	if len(trainings) == 0 {
		fmt.Println("No ready trainings.")
		return
	}
	for _, t := range trainings {
		fmt.Printf("%s  %-10s  %s\n", t.TrainingID, t.Status, t.Title)
	}
}

func runShow(cmd *cobra.Command, args []string) {
	st, _ := initStore()
	ctx := context.Background()
	trainingID := args[0]

	training, err := st.GetTraining(ctx, trainingID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load training")
	}
	if training == nil {
		log.Fatal().Str("trainingId", trainingID).Msg("Training not found")
	}

	fmt.Printf("TrainingId:  %s\n", training.TrainingID)
	fmt.Printf("Title:       %s\n", training.Title)
	fmt.Printf("Description: %s\n", training.Description)
	fmt.Printf("Status:      %s\n", training.Status)
	if training.VideoKey != "" {
		fmt.Printf("VideoKey:    %s\n", training.VideoKey)
	}
	if training.Error != "" {
		fmt.Printf("Error:       %s\n", training.Error)
	}
	if training.SourceBucket != "" {
		fmt.Printf("Source:      s3://%s/%s\n", training.SourceBucket, training.SourceKey)
	}

	reviews, err := st.ListReviews(ctx, trainingID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load reviews")
	}
	if len(reviews) > 0 {
		fmt.Printf("\nReviews (%d):\n", len(reviews))
		for _, r := range reviews {
			fmt.Printf("  %d/5  %-30s  %s\n", r.Rating, r.Email, r.Comment)
		}
	}
}

func runResubmit(cmd *cobra.Command, args []string) {
	logging.Init()
	cfg := config.FromEnv()
	if err := cfg.Require("TranscodeLambdaARN"); err != nil {
		log.Fatal().Err(err).Msg("Cannot resubmit without the transcode Lambda ARN")
	}

	awsCfg := lambdaboot.InitAWS()
	st := lambdaboot.InitStore(awsCfg, cfg)
	ctx := context.Background()
	trainingID := args[0]

	training, err := st.GetTraining(ctx, trainingID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load training")
	}
	if training == nil {
		log.Fatal().Str("trainingId", trainingID).Msg("Training not found")
	}
	if training.Status != store.StatusFailed {
		log.Fatal().
			Str("trainingId", trainingID).
			Str("status", string(training.Status)).
			Msg("Only Failed trainings can be resubmitted")
	}
	if training.SourceBucket == "" || training.SourceKey == "" {
		log.Fatal().Str("trainingId", trainingID).Msg("Training has no source object to rerun")
	}

	clone := &store.Training{
		TrainingID:   uuid.NewString(),
		Title:        training.Title,
		Description:  training.Description,
		SourceBucket: training.SourceBucket,
		SourceKey:    training.SourceKey,
		Status:       store.StatusPending,
	}
	if err := st.CreateTraining(ctx, clone); err != nil {
		log.Fatal().Err(err).Msg("Failed to create replacement training")
	}

	dispatcher := dispatch.NewLambdaDispatcher(lambdasvc.NewFromConfig(awsCfg), cfg.TranscodeLambdaARN)
	err = dispatcher.Dispatch(ctx, workflow.Input{
		TrainingID:    clone.TrainingID,
		TrainingTitle: clone.Title,
		SourceBucket:  clone.SourceBucket,
		SourceKey:     clone.SourceKey,
	})
	if err != nil {
		log.Fatal().Err(err).Str("trainingId", clone.TrainingID).Msg("Failed to dispatch workflow")
	}

	fmt.Printf("Resubmitted %s as %s\n", trainingID, clone.TrainingID)
}

func runNotifyTest(cmd *cobra.Command, args []string) {
	logging.Init()
	cfg := config.FromEnv()
	awsCfg := lambdaboot.InitAWS()

	topicARN := lambdaboot.ResolveTopicARN(awsCfg, cfg)
	if topicARN == "" {
		log.Fatal().Msg("No notification topic configured")
	}

	notifier := notify.NewTopicNotifier(sns.NewFromConfig(awsCfg), topicARN)
	if err := notifier.Notify(context.Background(), notify.OutcomeSucceeded, "vtadmin notify-test"); err != nil {
		log.Fatal().Err(err).Msg("Test notification failed")
	}
	fmt.Println("Test notification sent.")
}
