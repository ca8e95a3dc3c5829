package summarizer

import (
	"fmt"
	"strings"
)

const promptTemplate = `Eres un periodista senior que redacta resúmenes ejecutivos para un medio digital.

FORMATO
- Un único párrafo continuo, sin saltos de línea, viñetas, numeración ni encabezados.
- Entre %d y %d palabras.

CONTENIDO
- Cubre de forma implícita qué ocurrió, quién participa, cuándo, dónde, por qué y cómo.
- Incluye cifras, fechas y datos concretos cuando existan.
- Ordena de lo general a lo específico.

ESTILO
- Tono objetivo y formal, sin opiniones ni adjetivos valorativos.
- Sin lenguaje promocional ni sensacionalista.
- Responde solo con el resumen, sin comillas ni etiquetas.

TITULAR: %s

TEXTO:
%s
`

func buildPrompt(title, text string, minWords, maxWords int) string {
	return fmt.Sprintf(promptTemplate, minWords, maxWords, strings.TrimSpace(title), text)
}
