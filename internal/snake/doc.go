// Package snake implements the time-to-coordinate mapping engine for a
// laser-scanning microscope photon-tagger stream.
//
// A Snake is a precomputed, time-ordered vector of (end_time, coordinate)
// pairs spanning exactly one frame of the scanner's trajectory. The
// package fuses that model of scanner kinematics with a hot-path event
// classifier so that a continuous stream of photon timestamps can be
// turned into per-channel voxel accumulations in real time.
package snake
