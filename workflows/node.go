package workflows

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/hewudi666/maro/communication"
	"github.com/hewudi666/maro/manager"
	"github.com/hewudi666/maro/trainer"
	"github.com/hewudi666/maro/util"
)

const shutdownTimeout = 5 * time.Second

// ManagerCommand runs the multi-node policy manager: it discovers the
// group's trainer nodes over redis, then drives the training loop with
// locally produced rollouts. With --serve set it instead exposes the
// manager over HTTP and lets remote rollout producers drive it.
func ManagerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "manager",
		Short: "Run the policy manager node of a training group",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := util.NewLogger("POLICY_MANAGER", logDir)
			if err != nil {
				return err
			}
			defer logger.Close()

			endpoint, err := communication.NewRedisManagerEndpoint(cmd.Context(), communication.RedisConfig{
				Addr:       redisAddr,
				Group:      group,
				NumWorkers: numTrainers,
			})
			if err != nil {
				return err
			}

			policyDict, _, collectors := buildTrainingSetup()
			mgr, err := manager.New(cmd.Context(), manager.Config{
				Mode:          manager.ModeMultiNode,
				Policies:      policyDict,
				Endpoint:      endpoint,
				UpdateTrigger: uniformThresholds(policyDict, trigger),
				Warmup:        uniformThresholds(policyDict, warmupSize),
				Logger:        logger,
			})
			if err != nil {
				endpoint.Close()
				return err
			}

			if serveAddr != "" {
				server := manager.NewPolicyServer(serveAddr, mgr)
				go func() {
					<-cmd.Context().Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
					defer cancel()
					server.Shutdown(shutdownCtx)
				}()
				logger.Infof("serving policy state on %s", serveAddr)
				if err := server.Start(); err != nil {
					return err
				}
				return mgr.Exit()
			}

			if err := runTrainingLoop(cmd.Context(), mgr, collectors, logger); err != nil {
				return err
			}
			saveResults(collectors, logger)
			return mgr.Exit()
		},
	}
}

// TrainerCommand runs one trainer node of a training group
func TrainerCommand() *cobra.Command {
	var trainerID string
	command := &cobra.Command{
		Use:   "trainer",
		Short: "Run a trainer node of a training group",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := util.NewLogger(trainerID, logDir)
			if err != nil {
				return err
			}
			defer logger.Close()

			endpoint, err := communication.NewRedisWorkerEndpoint(cmd.Context(), communication.RedisConfig{
				Addr:  redisAddr,
				Group: group,
			}, trainerID)
			if err != nil {
				return err
			}

			_, policyFuncs, _ := buildTrainingSetup()
			return trainer.NewNode(endpoint, policyFuncs, logger).Run(cmd.Context())
		},
	}
	command.Flags().StringVar(&trainerID, "id", "TRAINER.0", "Identifier of this trainer node")
	return command
}
