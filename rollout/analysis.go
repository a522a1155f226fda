package rollout

import (
	"fmt"
	"os"
	"path"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/hewudi666/maro/util"
)

// RewardPlotter saves a learning-curve comparison of the named
// collectors' episode rewards as a png under plotPath
func RewardPlotter(plotPath string) func(names []string, rewards [][]float64) error {
	if _, err := os.Stat(plotPath); err != nil {
		os.MkdirAll(plotPath, os.ModePerm)
	}
	return func(names []string, rewards [][]float64) error {
		p := plot.New()
		p.Title.Text = "Episode rewards"
		p.X.Label.Text = "Episode"
		p.Y.Label.Text = "Reward"
		for i := 0; i < len(names); i++ {
			points := make(plotter.XYs, len(rewards[i]))
			for j, v := range rewards[i] {
				points[j] = plotter.XY{
					X: float64(j),
					Y: v,
				}
			}
			line, err := plotter.NewLine(points)
			if err != nil {
				continue
			}
			line.Color = plotutil.Color(i)
			p.Add(line)
			p.Legend.Add(names[i], line)
		}
		return p.Save(8*vg.Inch, 8*vg.Inch, path.Join(plotPath, "rewards.png"))
	}
}

// RecordRewards dumps per-episode rewards for one policy to a csv file
func RecordRewards(savePath, name string, rewards []float64) error {
	lines := make([]string, 0, len(rewards)+1)
	lines = append(lines, "episode,reward")
	for i, r := range rewards {
		lines = append(lines, fmt.Sprintf("%d,%f", i, r))
	}
	return util.WriteLines(path.Join(savePath, name+"_rewards.csv"), lines...)
}

// MovingAverage smooths a reward series with the given window
func MovingAverage(series []float64, window int) []float64 {
	if window <= 1 || len(series) == 0 {
		return series
	}
	out := make([]float64, len(series))
	sum := float64(0)
	for i, v := range series {
		sum += v
		if i >= window {
			sum -= series[i-window]
		}
		n := window
		if i+1 < window {
			n = i + 1
		}
		out[i] = sum / float64(n)
	}
	return out
}
