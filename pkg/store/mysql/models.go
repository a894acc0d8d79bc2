package mysql

import "rotapool/pkg/store/mysql/model"

type (
	// Database models
	ResourceEvent = model.ResourceEvent

	// Custom JSON types
	JSONMap = model.JSONMap
)
