package camdb

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/matchmove/camdb/internal/domain"
)

// cameraDTO mirrors one entry of the /cameras/ response.
type cameraDTO struct {
	ID      int64  `json:"id"`
	Make    string `json:"make"`
	Name    string `json:"name"`
	CamType string `json:"cam_type"`
}

// sensorModeDTO mirrors one entry of the /cameras/{id}/sensors/
// response. Numeric fields use the lenient types because the API has
// served them both as numbers and as quoted strings.
type sensorModeDTO struct {
	ID           int64      `json:"id"`
	ModeName     string     `json:"mode_name"`
	ResWidth     flexInt    `json:"res_width"`
	ResHeight    flexInt    `json:"res_height"`
	SensorWidth  flexFloat  `json:"sensor_width"`
	SensorHeight flexFloat  `json:"sensor_height"`
	FormatAspect *flexFloat `json:"format_aspect"`
	Approve      bool       `json:"approve"`
}

// sensorEnvelope covers the wrapped response shapes.
type sensorEnvelope struct {
	Sensors []sensorModeDTO `json:"sensors"`
	Data    []sensorModeDTO `json:"data"`
	Results []sensorModeDTO `json:"results"`
}

// decodeSensorPayload accepts a bare list, a wrapped list, or a single
// sensor object.
func decodeSensorPayload(body []byte) ([]sensorModeDTO, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []sensorModeDTO
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		return list, nil
	}

	var env sensorEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, err
	}
	switch {
	case env.Sensors != nil:
		return env.Sensors, nil
	case env.Data != nil:
		return env.Data, nil
	case env.Results != nil:
		return env.Results, nil
	}

	// Possibly a single sensor object.
	var one sensorModeDTO
	if err := json.Unmarshal(trimmed, &one); err != nil {
		return nil, err
	}
	if one.ID == 0 && one.ModeName == "" {
		return nil, nil
	}
	return []sensorModeDTO{one}, nil
}

func mapCameras(dtos []cameraDTO) []domain.Camera {
	cameras := make([]domain.Camera, 0, len(dtos))
	for _, d := range dtos {
		cameras = append(cameras, domain.Camera{
			ID:   d.ID,
			Make: d.Make,
			Name: d.Name,
			Type: d.CamType,
		})
	}
	return cameras
}

func mapSensorModes(cameraID int64, dtos []sensorModeDTO) []domain.SensorMode {
	modes := make([]domain.SensorMode, 0, len(dtos))
	for _, d := range dtos {
		mode := domain.SensorMode{
			ID:           d.ID,
			CameraID:     cameraID,
			ModeName:     d.ModeName,
			ResWidth:     int(d.ResWidth),
			ResHeight:    int(d.ResHeight),
			SensorWidth:  float64(d.SensorWidth),
			SensorHeight: float64(d.SensorHeight),
			Approved:     d.Approve,
		}
		if d.FormatAspect != nil && *d.FormatAspect > 0 {
			aspect := float64(*d.FormatAspect)
			mode.FormatAspect = &aspect
		}
		modes = append(modes, mode)
	}
	return modes
}

// flexFloat decodes a JSON number or a quoted numeric string. Null and
// empty strings decode to zero.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

// flexInt decodes a JSON integer or a quoted integer string.
type flexInt int

func (i *flexInt) UnmarshalJSON(data []byte) error {
	var f flexFloat
	if err := f.UnmarshalJSON(data); err != nil {
		return err
	}
	*i = flexInt(f)
	return nil
}
