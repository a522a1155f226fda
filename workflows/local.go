package workflows

import (
	"path"

	"github.com/spf13/cobra"

	"github.com/hewudi666/maro/manager"
	"github.com/hewudi666/maro/util"
)

// LocalCommand trains all policies inside the manager's own process
func LocalCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "local",
		Short: "Run a local training loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := util.NewLogger("POLICY_MANAGER", logDir)
			if err != nil {
				return err
			}
			defer logger.Close()

			policyDict, _, collectors := buildTrainingSetup()
			mgr, err := manager.New(cmd.Context(), manager.Config{
				Mode:            manager.ModeLocal,
				Policies:        policyDict,
				UpdateTrigger:   uniformThresholds(policyDict, trigger),
				Warmup:          uniformThresholds(policyDict, warmupSize),
				CheckpointDir:   path.Join(saveDir, "checkpoints"),
				CheckpointEvery: 10,
				Logger:          logger,
			})
			if err != nil {
				return err
			}

			if err := runTrainingLoop(cmd.Context(), mgr, collectors, logger); err != nil {
				return err
			}
			saveResults(collectors, logger)
			return mgr.Exit()
		},
	}
}

// MultiWorkerCommand trains the policies on a pool of worker goroutines
func MultiWorkerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "multi-worker",
		Short: "Run a training loop with a trainer worker pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := util.NewLogger("POLICY_MANAGER", logDir)
			if err != nil {
				return err
			}
			defer logger.Close()

			policyDict, policyFuncs, collectors := buildTrainingSetup()
			mgr, err := manager.New(cmd.Context(), manager.Config{
				Mode:          manager.ModeMultiWorker,
				Policies:      policyDict,
				PolicyFuncs:   policyFuncs,
				NumTrainers:   numTrainers,
				UpdateTrigger: uniformThresholds(policyDict, trigger),
				Warmup:        uniformThresholds(policyDict, warmupSize),
				Logger:        logger,
			})
			if err != nil {
				return err
			}

			if err := runTrainingLoop(cmd.Context(), mgr, collectors, logger); err != nil {
				return err
			}
			saveResults(collectors, logger)
			return mgr.Exit()
		},
	}
}

func uniformThresholds[T any](policies map[string]T, value int) map[string]int {
	out := make(map[string]int, len(policies))
	for name := range policies {
		out[name] = value
	}
	return out
}
