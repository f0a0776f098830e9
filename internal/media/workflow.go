package media

// node is one ComfyUI graph node. Links are [nodeID, outputIndex] pairs.
type node struct {
	ClassType string         `json:"class_type"`
	Inputs    map[string]any `json:"inputs"`
}

type workflow struct {
	Prompt map[string]node `json:"prompt"`
	Meta   map[string]any  `json:"meta,omitempty"`
}

func link(id string, out int) []any { return []any{id, out} }

const defaultNegativePrompt = "low quality, blurry, distorted"

// imageWorkflow is a text-to-image graph for a stock SD 1.5 checkpoint.
// Node ids must match the installed graph when it is customised.
func imageWorkflow(job ImageJob, seed int64) workflow {
	negative := job.NegativePrompt
	if negative == "" {
		negative = defaultNegativePrompt
	}
	return workflow{Prompt: map[string]node{
		"1": {ClassType: "KSampler", Inputs: map[string]any{
			"seed":         seed,
			"steps":        28,
			"cfg":          6.5,
			"sampler_name": "euler",
			"scheduler":    "normal",
			"denoise":      1,
			"model":        link("4", 0),
			"positive":     link("2", 0),
			"negative":     link("3", 0),
			"latent_image": link("5", 0),
		}},
		"2": {ClassType: "CLIPTextEncode", Inputs: map[string]any{"text": job.Prompt, "clip": link("4", 1)}},
		"3": {ClassType: "CLIPTextEncode", Inputs: map[string]any{"text": negative, "clip": link("4", 1)}},
		"4": {ClassType: "CheckpointLoaderSimple", Inputs: map[string]any{"ckpt_name": "v1-5-pruned-emaonly.safetensors"}},
		"5": {ClassType: "EmptyLatentImage", Inputs: map[string]any{"width": job.Width, "height": job.Height, "batch_size": 1}},
		"6": {ClassType: "VAEDecode", Inputs: map[string]any{"samples": link("1", 0), "vae": link("4", 2)}},
		"7": {ClassType: "SaveImage", Inputs: map[string]any{"images": link("6", 0), "filename_prefix": "brand_ai"}},
	}}
}

// videoWorkflow renders 24 frames per second, never fewer than 24.
func videoWorkflow(job VideoJob) workflow {
	frames := max(24, int(job.Seconds*24))
	return workflow{
		Prompt: map[string]node{
			"1": {ClassType: "CLIPTextEncode", Inputs: map[string]any{"text": job.Prompt, "clip": link("2", 1)}},
			"2": {ClassType: "CheckpointLoaderSimple", Inputs: map[string]any{"ckpt_name": "video-model.safetensors"}},
			"3": {ClassType: "VHS_VideoCombine", Inputs: map[string]any{
				"frame_rate":      24,
				"loop_count":      0,
				"filename_prefix": "brand_ai_video",
				"format":          "video/h264-mp4",
				"pix_fmt":         "yuv420p",
				"crf":             19,
				"save_output":     true,
				"images":          link("4", 0),
			}},
			"4": {ClassType: "EmptyImage", Inputs: map[string]any{"width": 1024, "height": 576, "batch_size": frames}},
		},
		Meta: map[string]any{"imageUrl": job.ImageURL},
	}
}
