package workflows

import "github.com/spf13/cobra"

var (
	rounds     int
	episodes   int
	horizon    int
	saveDir    string
	logDir     string
	numPolicy  int
	trigger    int
	warmupSize int

	numTrainers int
	group       string
	redisAddr   string
	serveAddr   string
)

func GetRootCommand() *cobra.Command {
	rootCommand := &cobra.Command{
		Use:   "maro",
		Short: "Distributed RL policy-training orchestrator",
	}
	rootCommand.PersistentFlags().IntVar(&rounds, "rounds", 50, "Number of update rounds to run")
	rootCommand.PersistentFlags().IntVarP(&episodes, "episodes", "e", 10, "Number of rollout episodes per round")
	rootCommand.PersistentFlags().IntVar(&horizon, "horizon", 100, "Horizon of each episode")
	rootCommand.PersistentFlags().StringVarP(&saveDir, "save", "s", "results", "Save result data in the specified folder")
	rootCommand.PersistentFlags().StringVar(&logDir, "log-dir", "", "Dump logs to the specified folder")
	rootCommand.PersistentFlags().IntVar(&numPolicy, "policies", 4, "Number of policies to train")
	rootCommand.PersistentFlags().IntVar(&trigger, "trigger", 10, "New experiences required to trigger an update")
	rootCommand.PersistentFlags().IntVar(&warmupSize, "warmup", 10, "Total experiences required before the first update")
	rootCommand.PersistentFlags().IntVar(&numTrainers, "trainers", 2, "Trainer pool size")
	rootCommand.PersistentFlags().StringVar(&group, "group", "TRAIN", "Training group name")
	rootCommand.PersistentFlags().StringVar(&redisAddr, "redis", "127.0.0.1:6379", "Redis address of the training group")
	rootCommand.PersistentFlags().StringVar(&serveAddr, "serve", "", "Expose the manager over HTTP on this address")
	// adding the subcommands here
	rootCommand.AddCommand(LocalCommand())
	rootCommand.AddCommand(MultiWorkerCommand())
	rootCommand.AddCommand(ManagerCommand())
	rootCommand.AddCommand(TrainerCommand())
	return rootCommand
}
