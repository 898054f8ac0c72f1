package snake

// DisplayColors is the compile-time default color table, indexed by
// 0..3 PMT channel, used by FrameBuffers to seed the merged display map
// the first time a channel hits a given voxel.
var DisplayColors = [4]RGB{
	{R: 255, G: 0, B: 0},   // Pmt1: red
	{R: 0, G: 255, B: 0},   // Pmt2: green
	{R: 0, G: 128, B: 255}, // Pmt3: blue
	{R: 255, G: 255, B: 0}, // Pmt4: yellow
}
