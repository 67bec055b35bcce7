package ssm

import (
	"fmt"
	"math"

	"bivssm/internal/models"
	"bivssm/pkg/vtk"
)

// NewTopology decodes the anatomical tags of a reference mesh. The tag array
// is looked up in the point data first and then in the cell data; it must
// hold one integer label code per tuple.
func NewTopology(mesh *vtk.Mesh, tagArray string) (*models.Topology, error) {
	if tagArray == "" {
		tagArray = DefaultTagArray
	}

	loc := models.PointTags
	arr := mesh.PointArray(tagArray)
	if arr == nil {
		loc = models.CellTags
		arr = mesh.CellArray(tagArray)
	}
	if arr == nil {
		return nil, fmt.Errorf("%w: reference mesh has no %q tag array", ErrMalformedModel, tagArray)
	}
	if arr.Components != 1 {
		return nil, fmt.Errorf("%w: tag array %q has %d components", ErrMalformedModel, tagArray, arr.Components)
	}

	tags := make([]models.Tag, len(arr.Values))
	for i, v := range arr.Values {
		t := models.Tag(v)
		if v != math.Trunc(v) || !t.Valid() {
			return nil, fmt.Errorf("%w: %s %d has unknown tag code %v", ErrMalformedModel, loc, i, v)
		}
		tags[i] = t
	}

	return &models.Topology{
		Reference:   mesh,
		Tags:        tags,
		TagLocation: loc,
		TagArray:    tagArray,
	}, nil
}
