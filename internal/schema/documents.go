package schema

// Response documents, one per JSON call kind.
var (
	ShotList = define("shot_list", `{
  "type": "array",
  "items": {
    "type": "object",
    "properties": {
      "timestamp": {"type": "string"},
      "shotType": {"type": "string"},
      "cameraMovement": {"type": "string"},
      "lighting": {"type": "string"},
      "pacing": {"type": "string"},
      "subjectAction": {"type": "string"},
      "dialogue": {"type": "string"},
      "dialogueType": {"type": "string", "enum": ["VO", "CHARACTER", ""]}
    },
    "required": ["timestamp", "shotType", "cameraMovement", "lighting", "subjectAction"]
  }
}`)

	Remap = define("remap", `{
  "type": "object",
  "properties": {
    "prompts": {"type": "array", "items": {"type": "string"}}
  },
  "required": ["prompts"]
}`)

	VideoPrompts = define("video_prompts", `{
  "type": "array",
  "items": {"type": "string"}
}`)

	Transitions = define("transitions", `{
  "type": "object",
  "properties": {
    "results": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "startShotId": {"type": "string"},
          "endShotId": {"type": "string"},
          "prompt": {"type": "string"}
        },
        "required": ["startShotId", "endShotId", "prompt"]
      }
    }
  },
  "required": ["results"]
}`)

	AmazonBrief = define("amazon_brief", `{
  "type": "array",
  "items": {
    "type": "object",
    "properties": {
      "id": {"type": "string"},
      "prompt": {"type": "string"},
      "finalPrompt": {"type": "string"}
    },
    "required": ["id", "prompt", "finalPrompt"]
  }
}`)

	PlotProposal = define("plot_proposal", `{
  "type": "object",
  "properties": {
    "filmTitle": {"type": "string"},
    "directorConcept": {"type": "string"},
    "narrativeArc": {"type": "string"},
    "visualTheme": {"type": "string"},
    "environments": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "id": {"type": "string"},
          "name": {"type": "string"},
          "description": {"type": "string"}
        },
        "required": ["id", "name", "description"]
      }
    },
    "keyStyleKeywords": {"type": "array", "items": {"type": "string"}}
  },
  "required": ["filmTitle", "directorConcept", "narrativeArc", "visualTheme", "environments", "keyStyleKeywords"]
}`)

	Narrative = define("narrative", `{
  "type": "object",
  "properties": {"narrativeArc": {"type": "string"}},
  "required": ["narrativeArc"]
}`)

	PlotStoryboard = define("plot_storyboard", `{
  "type": "array",
  "items": {
    "type": "object",
    "properties": {
      "sceneId": {"type": "string"},
      "sceneTitle": {"type": "string"},
      "environmentId": {"type": "string"},
      "timestamp": {"type": "string"},
      "shotType": {"type": "string"},
      "cameraMovement": {"type": "string"},
      "lighting": {"type": "string"},
      "subjectAction": {"type": "string"},
      "dialogue": {"type": "string"},
      "dialogueType": {"type": "string", "enum": ["VO", "CHARACTER"]}
    },
    "required": ["sceneId", "sceneTitle", "shotType", "cameraMovement", "lighting", "subjectAction", "dialogue", "dialogueType"]
  }
}`)

	Costumes = define("costumes", `{
  "type": "array",
  "items": {
    "type": "object",
    "properties": {
      "id": {"type": "string"},
      "name": {"type": "string"},
      "description": {"type": "string"},
      "style": {"type": "string"}
    },
    "required": ["id", "name", "description", "style"]
  }
}`)
)
