package detection

import "zenfocus/internal/types"

// GazeFromPose derives a gaze direction from head pose for producers that do
// not label gaze themselves. Yaw is checked before pitch; looking up needs
// 1.5x the pitch threshold.
func GazeFromPose(pose types.HeadPose, config *Config) types.GazeDirection {
	if config == nil {
		config = DefaultConfig()
	}
	switch {
	case pose.Yaw > config.GazeYawThreshold:
		return types.GazeRight
	case pose.Yaw < -config.GazeYawThreshold:
		return types.GazeLeft
	case pose.Pitch > config.GazePitchThreshold:
		return types.GazeDown
	case pose.Pitch < -config.GazePitchThreshold*1.5:
		return types.GazeUp
	default:
		return types.GazeCenter
	}
}
