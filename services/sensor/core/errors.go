// Copyright (C) 2025 Quantum Bio-Net (ops@qbionet.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package core

import "errors"

// ErrInvalidIntensity is returned by Actuate when the requested intensity
// falls outside [0.0, 1.0]. The call is rejected before any mutation, so
// node state and the event log are left untouched.
var ErrInvalidIntensity = errors.New("actuation intensity must be between 0.0 and 1.0")
