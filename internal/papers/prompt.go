package papers

// systemInstructionFormat carries the paper's title, URL, abstract, and
// extracted body into the summarizer's system instruction.
const systemInstructionFormat = `以下のテキストは、ある論文のタイトルとURL、abstract、および本文のコンテンツです。
本文はhtmlから抽出されたもので、ノイズや不要な部分が含まれている可能性があります。
よく読んで、ユーザーの質問に答えてください。

title
'''
%s
'''

url
'''
%s
'''

abstract
'''
%s
'''

contents
'''
%s
'''`

// questionContents is the fixed question set sent as the user turn.
const questionContents = `以下の8つの質問について、順を追って非常に詳細に、分かりやすく答えてください。

1. 既存研究では何ができなかったのか
2. どのようなアプローチでそれを解決しようとしたか
3. 結果、何が達成できたのか
4. Limitationや問題点は何か。本文で言及されているものの他、あなたが考えるものも含めて
5. 技術的な詳細について。技術者が読むことを想定したトーンで
6. コストや物理的な詳細について。例えばトレーニングに使用したGPUの数や時間、データセット、モデルのサイズなど
7. 参考文献のうち、特に参照すべきもの
8. この論文を140字以内のツイートで要約すると？

フォーマットは以下の通りで、markdown形式で回答してください。このフォーマットに沿った文言以外の出力は不要です。
なお、数式は表示が崩れがちで面倒なので、説明に数式を使うときは、代わりにPython風の疑似コードを書いてください。

'''
# タイトル

[View Paper](url)

## 1. 既存研究では何ができなかったのか

...

## 2. どのようなアプローチでそれを解決しようとしたか

...
'''

それでは、よろしくお願いします。`
