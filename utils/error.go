package utils

import "errors"

var ErrorRecordNotFound = errors.New("record not found")

var ErrorPermissionDenied = errors.New("permission denied")
