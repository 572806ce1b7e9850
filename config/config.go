// Package config defines MapperParameters, the decoded configuration tree
// for a submap engine instance, and its decode helper.
package config

import (
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"

	"go.viam.com/submap/carving"
	"go.viam.com/submap/cropping"
)

// CropperParameters configures the cropping volume attached to a map
// builder, per spec §6.
type CropperParameters struct {
	Kind   cropping.Kind   `mapstructure:"kind"`
	Params cropping.Params `mapstructure:"params"`
}

// CarvingParameters configures a space-carve pass. Every field except
// Enabled maps 1:1 onto carving.Params.
type CarvingParameters struct {
	Enabled                    bool    `mapstructure:"enabled"`
	MaxRangeToDrop             float64 `mapstructure:"max_range_to_drop_m"`
	VoxelSizeRay               float64 `mapstructure:"voxel_size_ray_m"`
	StepSize                   float64 `mapstructure:"step_size_m"`
	MinDotThresholdForDropping float64 `mapstructure:"min_dot_threshold_for_dropping"`
	CarveSpaceEveryNsec        int64   `mapstructure:"carve_space_every_nsec"`
}

// ToCarvingParams converts the decoded config into carving.Params.
func (c CarvingParameters) ToCarvingParams() carving.Params {
	return carving.Params{
		MaxRangeToDrop:             c.MaxRangeToDrop,
		VoxelSizeRay:               c.VoxelSizeRay,
		StepSize:                   c.StepSize,
		MinDotThresholdForDropping: c.MinDotThresholdForDropping,
		CarveSpaceEveryNsec:        c.CarveSpaceEveryNsec,
	}
}

// MapBuilderParameters configures the sparse/occupancy map builder (C2-C5).
type MapBuilderParameters struct {
	MapVoxelSize float64           `mapstructure:"map_voxel_size_m"`
	Cropper      CropperParameters `mapstructure:"cropper"`
	Carving      CarvingParameters `mapstructure:"carving"`
}

// DenseMapBuilderParameters configures the dense voxel grid builder (C3).
type DenseMapBuilderParameters struct {
	DenseVoxelSize float64           `mapstructure:"dense_voxel_size_m"`
	Cropper        CropperParameters `mapstructure:"cropper"`
	Carving        CarvingParameters `mapstructure:"carving"`
}

// ScanMatcherParameters configures normal estimation used ahead of ICP
// registration, and the ICP objective function name.
type ScanMatcherParameters struct {
	KNNNormalEstimation int    `mapstructure:"k_nn_normal_estimation"`
	ICPObjective        string `mapstructure:"icp_objective"`
}

// PlaceRecognitionParameters configures the feature extractor (C6).
type PlaceRecognitionParameters struct {
	FeatureVoxelSize       float64 `mapstructure:"feature_voxel_size_m"`
	NormalEstimationRadius float64 `mapstructure:"normal_estimation_radius_m"`
	NormalKnn              int     `mapstructure:"normal_knn"`
	FeatureRadius          float64 `mapstructure:"feature_radius_m"`
	FeatureKnn             int     `mapstructure:"feature_knn"`
}

// SubmapsParameters configures the submap orchestrator's own behavior (C7),
// independent of any one builder.
type SubmapsParameters struct {
	MinSecondsBetweenFeatureComputation float64 `mapstructure:"min_seconds_between_feature_computation"`
}

// MapperParameters is the full decoded parameter tree for a submap engine
// instance, per spec §6.
type MapperParameters struct {
	MapBuilder       MapBuilderParameters       `mapstructure:"map_builder"`
	DenseMapBuilder  DenseMapBuilderParameters  `mapstructure:"dense_map_builder"`
	ScanMatcher      ScanMatcherParameters      `mapstructure:"scan_matcher"`
	PlaceRecognition PlaceRecognitionParameters `mapstructure:"place_recognition"`
	Submaps          SubmapsParameters          `mapstructure:"submaps"`
}

// Decode decodes an arbitrary attribute map (as produced by a component
// config's Attributes) into a MapperParameters, taking the value from Default
// for every field the caller's map does not set.
func Decode(raw map[string]interface{}) (MapperParameters, error) {
	out := Default()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		WeaklyTypedInput: true,
		ErrorUnused:      false,
	})
	if err != nil {
		return MapperParameters{}, errors.Wrap(err, "building config decoder")
	}
	if err := decoder.Decode(raw); err != nil {
		return MapperParameters{}, errors.Wrap(err, "decoding mapper parameters")
	}
	return out, nil
}

// Default returns the stock MapperParameters used when a caller does not
// supply an explicit configuration.
func Default() MapperParameters {
	return MapperParameters{
		MapBuilder: MapBuilderParameters{
			MapVoxelSize: 0.05,
			Cropper: CropperParameters{
				Kind:   cropping.Sphere,
				Params: cropping.Params{Radius: 50},
			},
			Carving: CarvingParameters{
				Enabled:                    true,
				MaxRangeToDrop:             25,
				VoxelSizeRay:               0.1,
				StepSize:                   0.05,
				MinDotThresholdForDropping: 0,
				CarveSpaceEveryNsec:        1_000_000_000,
			},
		},
		DenseMapBuilder: DenseMapBuilderParameters{
			DenseVoxelSize: 0.02,
			Cropper: CropperParameters{
				Kind:   cropping.Sphere,
				Params: cropping.Params{Radius: 10},
			},
			Carving: CarvingParameters{
				Enabled:                    true,
				MaxRangeToDrop:             10,
				VoxelSizeRay:               0.04,
				StepSize:                   0.02,
				MinDotThresholdForDropping: 0,
				CarveSpaceEveryNsec:        1_000_000_000,
			},
		},
		ScanMatcher: ScanMatcherParameters{
			KNNNormalEstimation: 10,
			ICPObjective:        "point_to_plane",
		},
		PlaceRecognition: PlaceRecognitionParameters{
			FeatureVoxelSize:       0.1,
			NormalEstimationRadius: 0.3,
			NormalKnn:              15,
			FeatureRadius:          0.5,
			FeatureKnn:             20,
		},
		Submaps: SubmapsParameters{
			MinSecondsBetweenFeatureComputation: 5,
		},
	}
}
