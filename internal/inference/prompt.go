package inference

// NutritionPrompt asks for a bare JSON object with the keys menu_name, kcal, p, f and c.
const NutritionPrompt = `この食事画像を解析し、以下の情報をJSON形式で出力してください。
JSONのキーは必ず以下にしてください:
- menu_name (料理名:日本語)
- kcal (カロリー:数値)
- p (タンパク質g:数値)
- f (脂質g:数値)
- c (炭水化物g:数値)
※数値は推定で構いません。JSON以外の文字は出力しないでください。`
