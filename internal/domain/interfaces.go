package domain

import "context"

// CatalogClient retrieves camera data from the remote CamDB API.
// Implementations make a single attempt per call; retry policy, if any,
// belongs to the caller.
type CatalogClient interface {
	// FetchCameras retrieves the full camera list.
	FetchCameras(ctx context.Context) ([]Camera, error)

	// FetchSensorModes retrieves the sensor modes for one camera.
	FetchSensorModes(ctx context.Context, cameraID int64) ([]SensorMode, error)
}

// CameraCreator is the host-application boundary: it receives a selected
// camera, sensor mode and the converted parameter set, and performs the
// host-specific object creation. The core never depends on a concrete
// host toolkit.
type CameraCreator interface {
	CreateCamera(camera Camera, mode SensorMode, params CameraParams) error
}
